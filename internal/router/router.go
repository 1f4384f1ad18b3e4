// Package router wires the HTTP routes to their handlers.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recipedex/backend/internal/api"
	"github.com/recipedex/backend/internal/middleware"
)

// Setup configures the application routes. limiter may be nil when no
// Redis is available; ingestion then runs unthrottled.
func Setup(h *api.Handler, authCfg middleware.AuthConfig, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS())

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(authCfg))
	{
		ingest := v1.Group("/ingest")
		if limiter != nil {
			ingest.Use(limiter.Middleware())
		}
		ingest.POST("/recipe", h.IngestRecipe)

		recipes := v1.Group("/recipes")
		{
			recipes.GET("", h.ListRecipes)
			recipes.GET("/:id", h.GetRecipe)
		}

		sync := v1.Group("/sync")
		{
			sync.POST("/push", h.SyncPush)
			sync.GET("/pull", h.SyncPull)
		}

		v1.PUT("/densities", h.SetDensity)
		v1.GET("/grocery/weekly", h.WeeklyGrocery)
		v1.GET("/calendar/week.ics", h.WeekCalendar)
	}

	return router
}
