package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-sync/internal/api/middleware"
	"fleet-sync/internal/api/routes"
	"fleet-sync/internal/config"
	"fleet-sync/internal/reconcile"
	"fleet-sync/internal/services"
	"fleet-sync/internal/status"
	"fleet-sync/pkg/lock"
	"fleet-sync/pkg/ratelimit"
	"fleet-sync/pkg/redis"
	"fleet-sync/pkg/scheduler"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	redisClient := redis.NewClient(cfg.Redis, logger)
	defer redisClient.Close()

	healthStatus := redisClient.HealthCheck(context.Background())
	if healthStatus.IsConnected {
		logger.Info("Redis connected", zap.String("addr", healthStatus.ConnectionInfo))
	} else {
		logger.Warn("Redis connection failed, runs will be skipped until it recovers", zap.String("error", healthStatus.Error))
	}

	runner := reconcile.NewRunner(reconcile.MongoOpener(cfg, logger), cfg.Sync, reconcile.AllPasses, logger)
	syncService := services.NewSyncService(
		runner,
		lock.New(redisClient.GetClient(), cfg.Scheduler.LockTTL, logger),
		status.NewStore(redisClient.GetClient()),
		logger,
	)

	sched := scheduler.New("fleet-sync", cfg.Scheduler.Interval, func(ctx context.Context) error {
		_, err := syncService.Trigger(ctx)
		if errors.Is(err, services.ErrSyncInProgress) {
			return nil
		}
		return err
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}

	// Handle wildcard origin for development
	if len(cfg.Scheduler.AllowedOrigins) == 1 && cfg.Scheduler.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Scheduler.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	var runLimiter middleware.RateLimiter
	if cfg.Scheduler.RunRateLimit > 0 {
		runLimiter = ratelimit.NewRedisRateLimiter(redisClient.GetClient(), "fleetsync:ratelimit:", ratelimit.Limit{
			Requests: cfg.Scheduler.RunRateLimit,
			Window:   time.Minute,
		})
	}

	routes.SetupRoutes(router, syncService, redisClient, runLimiter, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Scheduler.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Scheduler.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
