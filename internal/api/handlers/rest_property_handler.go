package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"luxemap/estates/internal/filter"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/services"
)

// RestPropertyHandler handles REST requests for properties.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
	validate        *validator.Validate
}

func NewRestPropertyHandler(propertyService services.IPropertyService) *RestPropertyHandler {
	return &RestPropertyHandler{
		propertyService: propertyService,
		validate:        validator.New(),
	}
}

// validationSummary lists the offending fields of a validator error.
func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return strings.Join(fields, ", ")
}

// SearchProperties handles GET /v1/properties
func (h *RestPropertyHandler) SearchProperties(c *gin.Context) {
	f := models.DefaultFilterState()
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if err := h.validate.Struct(f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter: " + validationSummary(err)})
		return
	}

	sort, err := services.ParseSortOrder(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sort: expected price_asc or price_desc"})
		return
	}

	props, err := h.propertyService.Search(c.Request.Context(), f, filter.ParseScope(c.Query("scope")), sort)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter: bedrooms must be a whole number"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search properties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  props,
		"count": len(props),
	})
}

// GetProperty handles GET /v1/properties/:id
func (h *RestPropertyHandler) GetProperty(c *gin.Context) {
	detail, err := h.propertyService.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}
	c.JSON(http.StatusOK, detail)
}
