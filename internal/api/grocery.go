package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipedex/backend/internal/middleware"
)

// WeeklyGrocery returns the aggregated grocery list for recipes saved
// in the last seven days.
func (h *Handler) WeeklyGrocery(c *gin.Context) {
	list, err := h.recipes.WeeklyGrocery(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build grocery list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}
