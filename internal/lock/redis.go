package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

const retryInterval = 100 * time.Millisecond

// Redis is a Locker shared by every instance talking to the same Redis.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedis wraps a connected redis client. ttl bounds how long a crashed
// holder keeps the lock; a live holder refreshes it. wait bounds how long
// Acquire retries.
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	obtainCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	l, err := r.locker.Obtain(obtainCtx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s: %w", key, models.ErrLockUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(l, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := l.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lease every half ttl until stop is closed, so a
// holder slower than ttl keeps exclusive access.
func (r *Redis) keepAlive(l *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/2)
			err := l.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				r.logger.Warn("failed to refresh lock", zap.String("key", key), zap.Error(err))
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}
