package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"luxemap/estates/internal/services"
)

// RestContentHandler serves the static page content.
type RestContentHandler struct {
	contentService services.IContentService
}

func NewRestContentHandler(contentService services.IContentService) *RestContentHandler {
	return &RestContentHandler{contentService: contentService}
}

func (h *RestContentHandler) GetTestimonials(c *gin.Context) {
	testimonials := h.contentService.Testimonials()
	c.JSON(http.StatusOK, gin.H{"data": testimonials, "count": len(testimonials)})
}

func (h *RestContentHandler) GetLifestyleCurations(c *gin.Context) {
	curations := h.contentService.LifestyleCurations()
	c.JSON(http.StatusOK, gin.H{"data": curations, "count": len(curations)})
}

func (h *RestContentHandler) GetMarketInsights(c *gin.Context) {
	c.JSON(http.StatusOK, h.contentService.MarketInsights())
}

func (h *RestContentHandler) GetServicesPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.contentService.ServicesPage())
}

func (h *RestContentHandler) GetAgentsPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.contentService.AgentsPage())
}
