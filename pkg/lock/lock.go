package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotObtained is returned when another holder owns the lock.
var ErrNotObtained = errors.New("lock held by another process")

// ErrLockLost is returned when the lock could not be refreshed while fn ran.
var ErrLockLost = errors.New("lock lost while running")

// Locker serialises work across processes with a Redis lock.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Locker {
	return &Locker{
		client: redislock.New(rdb),
		ttl:    ttl,
		logger: logger,
	}
}

// WithLock runs fn while holding key. The lock is refreshed every half TTL
// while fn runs and released when it returns. If a refresh fails the context
// passed to fn is cancelled and WithLock reports ErrLockLost.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lk, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	go l.keepAlive(lk, key, done, cancel)

	defer func() {
		close(done)
		if releaseErr := lk.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()

	err = fn(ctx)
	if errors.Is(context.Cause(ctx), ErrLockLost) {
		return fmt.Errorf("%w: %s: %v", ErrLockLost, key, err)
	}
	return err
}

func (l *Locker) keepAlive(lk *redislock.Lock, key string, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := lk.Refresh(context.Background(), l.ttl, nil); err != nil {
				l.logger.Error("Failed to refresh lock, cancelling run", zap.String("key", key), zap.Error(err))
				cancel(ErrLockLost)
				return
			}
		}
	}
}
