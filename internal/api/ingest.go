package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recipedex/backend/internal/fetch"
	"github.com/recipedex/backend/internal/llm"
	"github.com/recipedex/backend/internal/middleware"
	"github.com/recipedex/backend/internal/pipeline"
)

// IngestRequest is the body of POST /ingest/recipe. Either url alone,
// or html (with url as the source attribution) may be given.
type IngestRequest struct {
	URL  string `json:"url" binding:"omitempty,url"`
	HTML string `json:"html"`
}

// IngestRecipe parses a recipe page, resolves its ingredients and
// saves the recipe. The page is fetched from url, or taken from html
// when the client already has the markup.
func (h *Handler) IngestRecipe(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.URL == "" && req.HTML == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url or html is required"})
		return
	}

	userID := middleware.UserID(c)
	var result *pipeline.Result
	var err error
	if req.HTML != "" {
		result, err = h.ingester.IngestHTML(c.Request.Context(), userID, req.URL, req.HTML)
	} else {
		result, err = h.ingester.IngestURL(c.Request.Context(), userID, req.URL)
	}
	if err != nil {
		status := http.StatusInternalServerError
		var fetchErr *fetch.Error
		var parseErr *llm.ParseError
		var confErr *llm.ConfigurationError
		switch {
		case errors.As(err, &fetchErr):
			status = http.StatusBadGateway
		case errors.As(err, &parseErr):
			status = http.StatusUnprocessableEntity
		case errors.As(err, &confErr):
			status = http.StatusServiceUnavailable
		}
		c.Error(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipe":          result.Recipe,
		"ingredients":     result.Ingredients,
		"new_ingredients": result.NewNames,
	})
}
