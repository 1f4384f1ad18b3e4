// Package app assembles the application from its configuration: the
// database, cache, index, LLM client, ingestion pipeline and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/recipedex/backend/config"
	"github.com/recipedex/backend/internal/api"
	"github.com/recipedex/backend/internal/artifacts"
	"github.com/recipedex/backend/internal/database"
	"github.com/recipedex/backend/internal/embedding"
	"github.com/recipedex/backend/internal/fetch"
	"github.com/recipedex/backend/internal/llm"
	"github.com/recipedex/backend/internal/middleware"
	"github.com/recipedex/backend/internal/pipeline"
	"github.com/recipedex/backend/internal/router"
	"github.com/recipedex/backend/internal/service"
)

// App holds the wired application.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Recipes  *service.RecipeService
	Index    *embedding.Index
	Pipeline *pipeline.Pipeline
	Router   *gin.Engine
	Logger   *zap.Logger
}

// New wires every component. Redis and S3 are optional; the Gemini
// key is required since nothing can be parsed without it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisHost != "" {
		redisClient, err = database.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and rate limits", zap.Error(err))
			redisClient = nil
		}
	}

	recipes := service.NewRecipeService(db, logger)

	index, err := buildIndex(ctx, cfg, recipes, logger)
	if err != nil {
		return nil, err
	}

	s3cfg, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		logger.Warn("s3 unavailable, keeping artifacts local only", zap.Error(err))
	}
	store := artifacts.NewStore(cfg.ArtifactsDir, s3cfg, logger)

	gemini, err := llm.NewGeminiClient(cfg, redisClient, logger)
	if err != nil {
		return nil, err
	}
	normalizer := llm.NewNormalizer(gemini, store, logger)

	fetcher := fetch.NewFetcher(cfg.FetchTimeout)
	pipe := pipeline.New(fetcher, normalizer, recipes, index, cfg.IndexBasePath,
		store, cfg.MatchThreshold, logger)

	handler := api.NewHandler(pipe, recipes, logger)

	var limiter *middleware.RateLimiter
	if redisClient != nil {
		limiter = middleware.NewIngestRateLimiter(redisClient)
	}
	authCfg := middleware.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowDevHeader: !config.IsProduction(),
	}
	engine := router.Setup(handler, authCfg, limiter, logger)

	return &App{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		Recipes:  recipes,
		Index:    index,
		Pipeline: pipe,
		Router:   engine,
		Logger:   logger,
	}, nil
}

// buildIndex restores the persisted similarity index, or seeds a fresh
// one from the database when no artifacts exist yet. Corrupt artifacts
// are an error; silently rebuilding would hide data loss.
func buildIndex(ctx context.Context, cfg *config.Config, recipes *service.RecipeService, logger *zap.Logger) (*embedding.Index, error) {
	var embedder embedding.Embedder
	if cfg.EmbeddingsURL != "" {
		embedder = embedding.NewHTTPEmbedder(cfg.EmbeddingsURL, cfg.EmbeddingsAPIKey,
			cfg.EmbeddingsModel, cfg.EmbedTimeout)
	} else {
		embedder = embedding.LocalEmbedder{}
	}
	index := embedding.NewIndex(embedder)

	if _, err := os.Stat(cfg.IndexBasePath + ".names.json"); err == nil {
		if err := index.Load(cfg.IndexBasePath); err != nil {
			if errors.Is(err, embedding.ErrIndexCorrupt) {
				return nil, fmt.Errorf("ingredient index at %s is unreadable, rebuild it with the reindex command: %w",
					cfg.IndexBasePath, err)
			}
			return nil, err
		}
		logger.Info("ingredient index loaded",
			zap.String("path", cfg.IndexBasePath), zap.Int("names", index.Len()))
		return index, nil
	}

	names, err := recipes.ListIngredientNames(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		if err := index.Build(ctx, names); err != nil {
			return nil, err
		}
	}
	logger.Info("ingredient index built from database", zap.Int("names", index.Len()))
	return index, nil
}

// Reindex rebuilds the index from the user's stored ingredient names
// and persists it.
func (a *App) Reindex(ctx context.Context, userID string) (int, error) {
	names, err := a.Recipes.ListIngredientNames(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := a.Index.Build(ctx, names); err != nil {
		return 0, err
	}
	if err := a.Index.Save(a.Config.IndexBasePath); err != nil {
		return 0, err
	}
	return len(names), nil
}
