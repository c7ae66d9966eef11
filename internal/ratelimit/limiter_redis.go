package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:sign:"

// RedisLimiter implements Limiter with a fixed window counter in Redis so
// multiple instances share limiter state.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := redisKeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit ttl: %w", err)
	}

	result := &Result{
		Limit:   l.limit,
		ResetAt: time.Now().Add(ttl),
	}
	if count > l.limit {
		return result, nil
	}
	result.Allowed = true
	result.Remaining = l.limit - count
	return result, nil
}
