package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements a sliding-window rate limiter backed by Redis,
// shared across all server instances.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// LimitInfo describes the state of a window after a request was counted.
type LimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// NewRedisRateLimiter creates a Redis-backed rate limiter.
func NewRedisRateLimiter(client *redis.Client, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisRateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow reports whether the request identified by key fits in the window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := l.AllowWithInfo(ctx, key, limit, window)
	return allowed, err
}

// AllowWithInfo counts the request and returns window state for headers.
// Sliding window over a sorted set: members are request markers scored by
// their timestamp; entries older than the window are trimmed first.
func (l *RedisRateLimiter) AllowWithInfo(ctx context.Context, key string, limit int, window time.Duration) (bool, *LimitInfo, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to check rate limit: %w", err)
	}

	count := int(countCmd.Val())
	info := &LimitInfo{
		Limit:     limit,
		Remaining: limit - count,
		ResetTime: now.Add(window),
	}

	if count >= limit {
		info.Remaining = 0
		// Window resets when the oldest counted entry ages out.
		oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			info.ResetTime = time.Unix(0, int64(oldest[0].Score)).Add(window)
		}
		return false, info, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to record request: %w", err)
	}

	info.Remaining = limit - count - 1
	return true, info, nil
}

// Reset drops the window for a key.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}
