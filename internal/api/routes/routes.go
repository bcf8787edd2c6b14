package routes

import (
	"fleet-sync/internal/api/handlers"
	"fleet-sync/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes registers the daemon API. runLimiter may be nil, which leaves
// manual runs unthrottled.
func SetupRoutes(router *gin.Engine, syncService handlers.SyncService, redisClient handlers.RedisHealth, runLimiter middleware.RateLimiter, logger *zap.Logger) {
	healthHandler := handlers.NewHealthHandler(redisClient, syncService)
	syncHandler := handlers.NewSyncHandler(syncService)

	router.GET("/health", healthHandler.HealthCheck)

	api := router.Group("/api/v1")

	sync := api.Group("/sync")
	{
		sync.GET("/status", syncHandler.GetStatus)

		run := []gin.HandlerFunc{syncHandler.RunSync}
		if runLimiter != nil {
			run = append([]gin.HandlerFunc{middleware.RateLimitMiddleware(runLimiter, logger)}, run...)
		}
		sync.POST("/run", run...)
	}
}
