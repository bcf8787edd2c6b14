package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet-sync/pkg/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestMiddleware(t *testing.T, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.POST("/api/v1/sync/run", RateLimitMiddleware(limiter, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "sync completed"})
	})
	return router
}

func redisLimiter(t *testing.T, limit ratelimit.Limit) *ratelimit.RedisRateLimiter {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return ratelimit.NewRedisRateLimiter(client, "test_ratelimit:", limit)
}

func post(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/run", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BlocksOverLimit(t *testing.T) {
	router := setupTestMiddleware(t, redisLimiter(t, ratelimit.Limit{Requests: 2, Window: time.Minute}))

	for i := 0; i < 2; i++ {
		w := post(router, "192.168.1.1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := post(router, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	// another client still has its own budget
	w = post(router, "192.168.1.2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_APIKeyIdentifiesClient(t *testing.T) {
	router := setupTestMiddleware(t, redisLimiter(t, ratelimit.Limit{Requests: 1, Window: time.Minute}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/run", nil)
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("X-API-Key", "dashboard")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.2"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func (failingLimiter) Limit() ratelimit.Limit {
	return ratelimit.Limit{Requests: 1, Window: time.Minute}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	router := setupTestMiddleware(t, failingLimiter{})

	w := post(router, "192.168.1.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rate limiter unavailable", w.Header().Get("X-RateLimit-Error"))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
