package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"luxemap/estates/internal/api/middleware"
	"luxemap/estates/internal/route"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
)

// RestViewHandler serves /v1/view. POST reports a hash change and returns
// the new route plus everything that view renders; GET re-renders the
// current view without touching route or scroll.
type RestViewHandler struct {
	sessions        *site.Store
	propertyService services.IPropertyService
	agentService    services.IAgentService
	contentService  services.IContentService
}

func NewRestViewHandler(
	sessions *site.Store,
	propertyService services.IPropertyService,
	agentService services.IAgentService,
	contentService services.IContentService,
) *RestViewHandler {
	return &RestViewHandler{
		sessions:        sessions,
		propertyService: propertyService,
		agentService:    agentService,
		contentService:  contentService,
	}
}

type navigateRequest struct {
	Fragment string `json:"fragment"`
}

// Navigate handles POST /v1/view {"fragment":"#/agents"}. An empty body
// navigates to the landing view.
func (h *RestViewHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.render(c, h.sessions.Session(middleware.VisitorID(c)).Navigate(req.Fragment))
}

// GetView handles GET /v1/view. It is read-only.
func (h *RestViewHandler) GetView(c *gin.Context) {
	h.render(c, h.sessions.Session(middleware.VisitorID(c)).Snapshot())
}

func (h *RestViewHandler) render(c *gin.Context, snap site.Snapshot) {
	page, err := h.page(c, snap)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render view"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route":      snap.Route,
		"fragment":   snap.Fragment,
		"scroll_top": snap.ScrollTop,
		"panel":      snap.Panel,
		"page":       page,
	})
}

func (h *RestViewHandler) page(c *gin.Context, snap site.Snapshot) (gin.H, error) {
	ctx := c.Request.Context()
	switch snap.Route {
	case route.Properties:
		props, err := h.propertyService.Search(ctx, snap.Filters, scopeFor(snap.Route), services.SortNone)
		if err != nil {
			return nil, err
		}
		return gin.H{"filters": snap.Filters, "properties": props, "count": len(props)}, nil
	case route.Agents:
		return gin.H{"agents": h.agentService.List(), "content": h.contentService.AgentsPage()}, nil
	case route.MarketInsights:
		return gin.H{"content": h.contentService.MarketInsights()}, nil
	case route.Services:
		return gin.H{"content": h.contentService.ServicesPage()}, nil
	default:
		props, err := h.propertyService.Search(ctx, snap.Filters, scopeFor(snap.Route), services.SortNone)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"filters":      snap.Filters,
			"properties":   props,
			"count":        len(props),
			"testimonials": h.contentService.Testimonials(),
			"curations":    h.contentService.LifestyleCurations(),
		}, nil
	}
}
