// Package lock provides a Redis lease used to keep one scheduler tick running
// across all worker instances.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lease expired or was taken over.
var ErrNotHeld = errors.New("lease not held")

// Lease is a named mutual-exclusion token with an expiry.
type Lease interface {
	// TryAcquire returns a release func when the lease was free, or ok=false
	// when another holder owns it.
	TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLease struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// DefaultTTL replaces a non-positive lease ttl. A lease without expiry would
// outlive a crashed holder forever.
const DefaultTTL = 10 * time.Minute

func NewRedisLease(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLease) TryAcquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return release, true, nil
}

// Local is an in-process lease for single-instance deployments and tests.
type Local struct {
	held chan struct{}
}

func NewLocal() *Local {
	return &Local{held: make(chan struct{}, 1)}
}

func (l *Local) TryAcquire(context.Context) (func(context.Context) error, bool, error) {
	select {
	case l.held <- struct{}{}:
		return func(context.Context) error {
			<-l.held
			return nil
		}, true, nil
	default:
		return nil, false, nil
	}
}
