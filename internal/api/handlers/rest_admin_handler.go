package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"luxemap/estates/internal/services"
)

// RestAdminHandler serves the staff-only endpoints under /v1/admin.
type RestAdminHandler struct {
	enquiryService services.IEnquiryService
}

func NewRestAdminHandler(enquiryService services.IEnquiryService) *RestAdminHandler {
	return &RestAdminHandler{enquiryService: enquiryService}
}

// ListEnquiries handles GET /v1/admin/enquiries?limit=
func (h *RestAdminHandler) ListEnquiries(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	enquiries, err := h.enquiryService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrStorageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Enquiries are not stored on this server"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list enquiries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": enquiries, "count": len(enquiries)})
}
