package locker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "weld/pkg/domain-errors"
)

const (
	// Redis key prefix for identity locks.
	lockKeyPrefix = "weld:lock:"

	defaultLockTTL       = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
)

// Redis is a Locker backed by Redis SET NX marker keys, for deployments
// where multiple instances share the contact store. The TTL bounds how long
// a crashed holder can block an identity.
type Redis struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL overrides the lock expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRetryInterval overrides the polling interval while waiting for a
// contended key.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.retryInterval = d }
}

// NewRedis constructs a Redis-backed identity locker.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	l := &Redis{
		client:        client,
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// releaseScript deletes a lock key only when it still holds our token, so
// an expired-and-reacquired lock is never released on behalf of another
// holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = sortedUnique(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := r.acquireOne(ctx, lockKeyPrefix+key, token); err != nil {
			r.releaseKeys(held, token)
			return nil, err
		}
		held = append(held, lockKeyPrefix+key)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		r.releaseKeys(held, token)
	}, nil
}

func (r *Redis) acquireOne(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(r.retryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUnavailable, "identity lock unavailable", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return pkgerrors.Wrap(pkgerrors.CodeUnavailable, "identity lock wait canceled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaseKeys(keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	// Release uses a fresh context: the caller's may already be canceled and
	// the locks must still go away promptly rather than wait out the TTL.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		_ = releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Err()
	}
}
