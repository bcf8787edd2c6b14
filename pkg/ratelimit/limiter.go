package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is a fixed window: at most Requests per Window for one client.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RedisRateLimiter counts requests per client in Redis so that every daemon
// replica shares the same budget.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  Limit
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(client *redis.Client, prefix string, limit Limit) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
	}
}

func (r *RedisRateLimiter) Limit() Limit {
	return r.limit
}

// windowScript returns {allowed, retry_after_ms}.
var windowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window_size = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local count = tonumber(redis.call('HGET', key, 'count')) or 0
	local window_start = tonumber(redis.call('HGET', key, 'window_start')) or now

	if now - window_start >= window_size then
		count = 0
		window_start = now
	end

	local allowed = count < max_requests
	if allowed then
		count = count + 1
	end

	local retry_after = 0
	if not allowed then
		retry_after = (window_start + window_size) - now
	end

	redis.call('HSET', key, 'count', count, 'window_start', window_start)
	redis.call('PEXPIRE', key, window_size)

	return {allowed and 1 or 0, retry_after}
`)

// Allow records one request for clientID and reports whether it fits in the
// current window. When it does not, the returned duration is the time until
// the window resets.
func (r *RedisRateLimiter) Allow(ctx context.Context, clientID string) (bool, time.Duration, error) {
	key := r.prefix + clientID

	result, err := windowScript.Run(ctx, r.client, []string{key},
		r.limit.Requests,
		r.limit.Window.Milliseconds(),
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected script result format")
	}

	return result[0] == 1, time.Duration(result[1]) * time.Millisecond, nil
}
