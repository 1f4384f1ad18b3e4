// Package api exposes the HTTP surface: recipe ingestion, recipe and
// grocery reads, sync feeds and calendar export.
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/recipedex/backend/internal/pipeline"
	"github.com/recipedex/backend/internal/service"
)

// Ingester runs the full ingestion flow for one page.
type Ingester interface {
	IngestURL(ctx context.Context, userID, url string) (*pipeline.Result, error)
	IngestHTML(ctx context.Context, userID, sourceURL, markup string) (*pipeline.Result, error)
}

// Handler bundles the services behind the HTTP routes.
type Handler struct {
	ingester Ingester
	recipes  *service.RecipeService
	logger   *zap.Logger
}

func NewHandler(ingester Ingester, recipes *service.RecipeService, logger *zap.Logger) *Handler {
	return &Handler{ingester: ingester, recipes: recipes, logger: logger}
}
