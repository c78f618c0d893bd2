package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-agent/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenLocker is the Redis client surface used for cross-instance locks.
type TokenLocker interface {
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) (bool, error)
	RefreshLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
}

// Redis is a cross-instance lock built on SET NX. Acquisition polls until the context
// ends; ttl bounds how long a crashed holder can block a key. A live holder extends the
// key every ttl/3 until it unlocks.
type Redis struct {
	client TokenLocker
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedis(client TokenLocker, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		logger: util.GetLogger(),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := uuid.New().String()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.AcquireLock(ctx, lockKey, token, r.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(lockKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			r.release(lockKey, token)
		})
	}, nil
}

func (r *Redis) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := r.client.RefreshLock(ctx, lockKey, token, r.ttl)
			cancel()
			if err != nil {
				r.logger.Warn("Failed to refresh lock", zap.String("key", lockKey), zap.Error(err))
				continue
			}
			if !ok {
				r.logger.Warn("Lock lost before release", zap.String("key", lockKey))
				return
			}
		}
	}
}

func (r *Redis) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := r.client.ReleaseLock(ctx, lockKey, token)
	if err != nil {
		r.logger.Error("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
		return
	}
	if !ok {
		r.logger.Warn("Lock expired before release", zap.String("key", lockKey))
	}
}
