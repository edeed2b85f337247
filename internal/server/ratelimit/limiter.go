// Package ratelimit implements a fixed-window request limiter for the
// public auth and probe endpoints.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Noop allows everything. It is used when no Redis address is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Limit: -1, Remaining: -1}, nil
}

// counter is the subset of *redis.Client the limiter needs.
type counter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter counts requests per key in a window. A key that exceeds the
// limit is blocked for one more window. Redis errors are returned together
// with an allowing Decision, so callers fail open.
type RedisLimiter struct {
	rdb    counter
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return newRedisLimiter(rdb, prefix, limit, window)
}

func newRedisLimiter(rdb counter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = l.prefix + ":" + key
	blockKey := key + ":blocked"

	if blocked, _ := l.rdb.Get(ctx, blockKey).Result(); blocked == "1" {
		ttl, _ := l.rdb.TTL(ctx, blockKey).Result()
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: ttl}, nil
	}

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}
	if count == 1 {
		l.rdb.Expire(ctx, key, l.window)
	}

	if count > int64(l.limit) {
		l.rdb.Set(ctx, blockKey, "1", l.window)
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: l.window}, nil
	}

	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - int(count)}, nil
}
