package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleet-sync/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Client struct {
	client      *redis.Client
	config      config.RedisConfig
	mu          sync.RWMutex
	isConnected bool
	logger      *zap.Logger
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a Redis client from cfg. A REDIS_URL takes precedence
// over host and port. The initial ping result is only logged.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	c := &Client{
		client: redis.NewClient(options(cfg, logger)),
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection test failed", zap.Error(err))
	} else {
		c.isConnected = true
		logger.Info("Redis connected", zap.String("addr", c.client.Options().Addr))
	}

	return c
}

// Wrap adopts an existing go-redis client.
func Wrap(client *redis.Client, logger *zap.Logger) *Client {
	return &Client{client: client, isConnected: true, logger: logger}
}

func options(cfg config.RedisConfig, logger *zap.Logger) *redis.Options {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err == nil {
			applyPoolSettings(opt, cfg)
			return opt
		}
		logger.Warn("Failed to parse Redis URL, falling back to host:port", zap.Error(err))
	}

	opt := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	applyPoolSettings(opt, cfg)
	return opt
}

func applyPoolSettings(opt *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.MaxRetries = cfg.MaxRetries
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
}

// GetClient returns the underlying go-redis client.
func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck pings Redis and records the outcome.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		ConnectionInfo: c.client.Options().Addr,
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	status.IsConnected = err == nil
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func (c *Client) Close() error {
	return c.client.Close()
}
