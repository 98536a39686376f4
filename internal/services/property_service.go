package services

import (
	"context"
	"fmt"
	"strings"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/filter"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
)

// SortOrder is the landing grid's "Sort by Price" control.
type SortOrder string

const (
	SortNone      SortOrder = ""
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortNone:
		return SortNone, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	}
	return SortNone, fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// PropertyDetail is what the detail panel shows for one listing.
type PropertyDetail struct {
	Property      models.Property          `json:"property"`
	Neighborhood  *models.NeighborhoodInfo `json:"neighborhood,omitempty"`
	Views         int                      `json:"views"`
	AverageRating float64                  `json:"averageRating"`
}

// IPropertyService answers catalog queries.
type IPropertyService interface {
	All(ctx context.Context) []models.Property
	Search(ctx context.Context, f models.FilterState, scope filter.Scope, sort SortOrder) ([]models.Property, error)
	Detail(ctx context.Context, id string) (*PropertyDetail, error)
	ShareText(ctx context.Context, id string) (string, error)
}

type propertyService struct {
	catalog   *fixtures.Catalog
	overrides IImageOverrides
	cfg       *config.Config
}

func NewPropertyService(cfg *config.Config, catalog *fixtures.Catalog, overrides IImageOverrides) IPropertyService {
	return &propertyService{catalog: catalog, overrides: overrides, cfg: cfg}
}

// withImages swaps in enhanced image URLs. A failing override store is
// logged and the fixture images are served.
func (s *propertyService) withImages(ctx context.Context, props []models.Property) []models.Property {
	if s.overrides == nil {
		return props
	}
	urls, err := s.overrides.All(ctx)
	if err != nil {
		logging.Logger.Warnf("Serving original images: %v", err)
		return props
	}
	if len(urls) == 0 {
		return props
	}
	for i := range props {
		if u, ok := urls[props[i].ID]; ok && u != "" {
			props[i].ImageURL = u
		}
	}
	return props
}

func (s *propertyService) All(ctx context.Context) []models.Property {
	return s.withImages(ctx, s.catalog.Properties())
}

func (s *propertyService) Search(ctx context.Context, f models.FilterState, scope filter.Scope, sort SortOrder) ([]models.Property, error) {
	if _, err := f.MinBeds(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if scope == filter.ScopeLanding && s.cfg.UniformPriceFilter {
		scope = filter.ScopeLandingPriced
	}

	out := filter.Apply(s.catalog.Properties(), f, scope)
	switch sort {
	case SortPriceAsc:
		out = filter.SortByPrice(out, true)
	case SortPriceDesc:
		out = filter.SortByPrice(out, false)
	}
	return s.withImages(ctx, out), nil
}

func (s *propertyService) Detail(ctx context.Context, id string) (*PropertyDetail, error) {
	p, ok := s.catalog.Property(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	p = s.withImages(ctx, []models.Property{p})[0]

	d := &PropertyDetail{
		Property:      p,
		Views:         s.catalog.ViewCount(id),
		AverageRating: averageRating(p.Reviews),
	}
	if n, ok := s.catalog.Neighborhood(id); ok {
		d.Neighborhood = &n
	}
	return d, nil
}

func averageRating(reviews []models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// ShareText is the clipboard text for the share button.
func (s *propertyService) ShareText(ctx context.Context, id string) (string, error) {
	p, ok := s.catalog.Property(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	return fmt.Sprintf("Check out %s — $%.1fM in %s", p.Title, float64(p.Price)/1_000_000, p.Location), nil
}
