package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"luxemap/estates/internal/services"
)

// RestAgentHandler handles REST requests for agents.
type RestAgentHandler struct {
	agentService services.IAgentService
}

func NewRestAgentHandler(agentService services.IAgentService) *RestAgentHandler {
	return &RestAgentHandler{agentService: agentService}
}

// ListAgents handles GET /v1/agents
func (h *RestAgentHandler) ListAgents(c *gin.Context) {
	agents := h.agentService.List()
	c.JSON(http.StatusOK, gin.H{"data": agents, "count": len(agents)})
}

// GetAgent handles GET /v1/agents/:id
func (h *RestAgentHandler) GetAgent(c *gin.Context) {
	agent, err := h.agentService.Find(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve agent"})
		return
	}
	c.JSON(http.StatusOK, agent)
}

// GetContactCard handles GET /v1/agents/:id/vcard
func (h *RestAgentHandler) GetContactCard(c *gin.Context) {
	card, err := h.agentService.ContactCard(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build contact card"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", card.Filename))
	c.Data(http.StatusOK, "text/vcard; charset=utf-8", []byte(card.Content))
}
