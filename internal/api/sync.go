package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recipedex/backend/internal/middleware"
)

// PushChange is one client-originated mutation.
type PushChange struct {
	Entity   string          `json:"entity" binding:"required,oneof=recipe ingredient"`
	EntityID string          `json:"entity_id"`
	Op       string          `json:"op" binding:"required,oneof=create update delete"`
	Payload  json.RawMessage `json:"payload"`
}

// PushRequest is the body of POST /sync/push.
type PushRequest struct {
	Changes []PushChange `json:"changes" binding:"required,min=1,dive"`
}

// SyncPush records client changes in the log and returns the new
// cursor position.
func (h *Handler) SyncPush(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	var cursor uint
	for _, change := range req.Changes {
		entry, err := h.recipes.PushChange(c.Request.Context(), userID,
			change.Entity, change.EntityID, change.Op, change.Payload)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record change"})
			return
		}
		cursor = entry.ID
	}

	c.JSON(http.StatusOK, gin.H{"accepted": len(req.Changes), "cursor": cursor})
}

// SyncPull returns change log entries newer than the "since" cursor.
func (h *Handler) SyncPull(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
		return
	}

	entries, err := h.recipes.PullChanges(c.Request.Context(), middleware.UserID(c), uint(since))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load changes"})
		return
	}

	cursor := uint(since)
	if len(entries) > 0 {
		cursor = entries[len(entries)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"changes": entries, "cursor": cursor})
}
