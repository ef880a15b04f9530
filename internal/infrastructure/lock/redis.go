package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
)

// Redis locks keys across instances with redsync. A lock is tried once and
// expires on its own if the holder dies.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger logging.Logger
}

func NewRedis(client redis.UniversalClient, expiry time.Duration, logger logging.Logger) *Redis {
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex(key,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	return func() {
		// the caller's context may already be done when releasing
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(ctx); err != nil {
			r.logger.Warn("lock release failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}, nil
}
