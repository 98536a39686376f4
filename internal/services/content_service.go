package services

import (
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/models"
)

// IContentService serves the static page content.
type IContentService interface {
	Testimonials() []models.Testimonial
	LifestyleCurations() []models.LifestyleCuration
	MarketInsights() models.MarketInsights
	ServicesPage() models.ServicesPage
	AgentsPage() models.AgentsPage
}

type contentService struct {
	catalog *fixtures.Catalog
}

func NewContentService(catalog *fixtures.Catalog) IContentService {
	return &contentService{catalog: catalog}
}

func (s *contentService) Testimonials() []models.Testimonial { return s.catalog.Testimonials() }

func (s *contentService) LifestyleCurations() []models.LifestyleCuration {
	return s.catalog.LifestyleCurations()
}

func (s *contentService) MarketInsights() models.MarketInsights { return s.catalog.MarketInsights() }

func (s *contentService) ServicesPage() models.ServicesPage { return s.catalog.ServicesPage() }

func (s *contentService) AgentsPage() models.AgentsPage { return s.catalog.AgentsPage() }
