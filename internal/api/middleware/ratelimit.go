package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleet-sync/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (bool, time.Duration, error)
	Limit() ratelimit.Limit
}

// RateLimitMiddleware rejects clients that exceed the limiter's budget with
// 429. Limiter errors let the request through.
func RateLimitMiddleware(limiter RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := getClientID(c)

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), clientID)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		setRateLimitHeaders(c, limiter.Limit(), allowed, retryAfter)

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    fmt.Sprintf("Too many requests. Try again in %v", retryAfter.Round(time.Second)),
				"error":      "Rate limit exceeded",
				"retryAfter": retryAfterSeconds(retryAfter),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getClientID extracts a unique client identifier from the request
func getClientID(c *gin.Context) string {
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return "api:" + apiKey
	}
	return "ip:" + getClientIP(c)
}

// getClientIP extracts the real client IP address
func getClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}

	return c.ClientIP()
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func setRateLimitHeaders(c *gin.Context, limit ratelimit.Limit, allowed bool, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(limit.Window.Seconds())))

	if !allowed {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	}
}
