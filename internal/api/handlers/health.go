package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fleet-sync/internal/reconcile"
	"fleet-sync/internal/status"
	"fleet-sync/pkg/redis"

	"github.com/gin-gonic/gin"
)

type RedisHealth interface {
	HealthCheck(ctx context.Context) redis.HealthStatus
}

type HealthHandler struct {
	redisClient RedisHealth
	sync        SyncService
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
	LastRun   *LastRun               `json:"lastRun,omitempty"`
}

// LastRun summarises the most recent sync without the per-pass counts.
type LastRun struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
}

func NewHealthHandler(redisClient RedisHealth, sync SyncService) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		sync:        sync,
	}
}

// HealthCheck reports 503 when Redis is unreachable, because without it the
// daemon can neither take the run lock nor store reports. A failed last run
// is reported but does not make the daemon unhealthy.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	redisStatus := h.checkRedis(ctx)
	response.Services["redis"] = redisStatus
	healthy := redisStatus["healthy"].(bool)

	if healthy && h.sync != nil {
		report, err := h.sync.Latest(ctx)
		switch {
		case err == nil:
			response.LastRun = lastRun(report)
		case errors.Is(err, status.ErrNoReport):
		default:
			response.Services["reports"] = map[string]interface{}{"error": err.Error()}
		}
	}

	if healthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkRedis(ctx context.Context) map[string]interface{} {
	result := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}

	if h.redisClient == nil {
		result["error"] = "Redis client not initialized"
		return result
	}

	healthStatus := h.redisClient.HealthCheck(ctx)
	result["healthy"] = healthStatus.IsConnected
	result["connectionInfo"] = healthStatus.ConnectionInfo
	result["responseTime"] = healthStatus.ResponseTime.String()
	result["lastPing"] = healthStatus.LastPing
	if healthStatus.Error != "" {
		result["error"] = healthStatus.Error
	}

	return result
}

func lastRun(report *reconcile.Report) *LastRun {
	return &LastRun{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  report.Succeeded(),
		Error:      report.Error,
	}
}
