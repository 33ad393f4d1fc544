package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cooldown:code:"

// RedisLimiter backs the cooldown with Redis so the window survives process
// restarts and is shared across instances. SET NX with a TTL gives the same
// check-and-set semantics as the in-process map.
type RedisLimiter struct {
	cache  *redis.Client
	window time.Duration
}

// NewRedisLimiter builds a Redis-backed limiter with the given window.
func NewRedisLimiter(cache *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{cache: cache, window: window}
}

// Reserve opens a cooldown window for key, or reports the TTL left on the
// window already reserved.
func (l *RedisLimiter) Reserve(ctx context.Context, key string) (time.Duration, bool, error) {
	cacheKey := redisKeyPrefix + key

	set, err := l.cache.SetNX(ctx, cacheKey, time.Now().UTC().Unix(), l.window).Result()
	if err != nil {
		return 0, false, err
	}
	if set {
		return 0, true, nil
	}

	ttl, err := l.cache.PTTL(ctx, cacheKey).Result()
	if err != nil {
		return 0, false, err
	}
	if ttl <= 0 {
		// Window expired between the SETNX and the PTTL; treat as denied
		// with no meaningful remainder rather than racing a second SETNX.
		return 0, false, nil
	}
	return ttl, false, nil
}
