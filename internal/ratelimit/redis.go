package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKey returns the Redis key for a client's attempt counter.
func redisKey(key string) string {
	return "ratelimit:" + key
}

// RedisLimiter enforces a fixed-window limit using a Redis counter per
// key, so admission state is shared when several replicas sit behind
// one load balancer. Session state itself is never shared this way.
type RedisLimiter struct {
	client redis.Cmdable
	max    int64
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing max attempts per window.
func NewRedisLimiter(client redis.Cmdable, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    int64(max),
		window: window,
	}
}

// Allow returns true if the key has not exceeded the limit in the
// current window. When Redis is unreachable the attempt is allowed;
// degraded rate limiting must not take the relay down with it.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	k := redisKey(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		log.Printf("ratelimit: redis incr failed, allowing attempt: %v", err)
		return true
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			log.Printf("ratelimit: redis expire failed: %v", err)
		}
	}
	return n <= l.max
}
