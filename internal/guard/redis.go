// internal/guard/redis.go
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lease only if it still carries our token, so an expired holder can
// never release a lock that has since been taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is the multi-instance Guard: a SET NX PX lease per key.
type RedisLease struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *logrus.Logger
}

// NewRedisLease builds a lease guard. ttl bounds how long a crashed holder can block a key.
func NewRedisLease(rdb redis.UniversalClient, ttl, wait time.Duration, logger *logrus.Logger) *RedisLease {
	return &RedisLease{
		rdb:    rdb,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

func (r *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}
}

func (r *RedisLease) releaser(key, token string) func() {
	acquired := time.Now()
	return func() {
		// Release must succeed even when the request context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Int()
		if err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("failed to release lease")
			return
		}
		if n == 0 {
			r.logger.WithFields(logrus.Fields{
				"key":  key,
				"held": time.Since(acquired),
				"ttl":  r.ttl,
			}).Warn("lease expired before release")
		}
	}
}
