package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipedex/backend/internal/middleware"
)

// DensityRequest records a g/ml density for one ingredient so its
// volume quantities can be converted to grams.
type DensityRequest struct {
	Name       string  `json:"name" binding:"required"`
	DensityGML float64 `json:"density_g_ml" binding:"required,gt=0"`
	Source     string  `json:"source"`
}

// SetDensity stores a per-user density override.
func (h *Handler) SetDensity(c *gin.Context) {
	var req DensityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and a positive density_g_ml are required"})
		return
	}
	source := req.Source
	if source == "" {
		source = "user"
	}
	if err := h.recipes.SetDensity(c.Request.Context(), middleware.UserID(c), req.Name, req.DensityGML, source); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save density"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "density_g_ml": req.DensityGML})
}
