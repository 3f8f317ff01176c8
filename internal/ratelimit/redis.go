package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding window as a sorted set per key,
// scored by timestamp.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLimiterWithClient(client, limit, window), nil
}

// NewRedisLimiterWithClient creates a limiter from an existing Redis client.
func NewRedisLimiterWithClient(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:",
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-l.window)
	redisKey := l.key(key)

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff.UnixNano())).Err(); err != nil {
		return false, fmt.Errorf("trim rate window: %w", err)
	}

	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("count rate window: %w", err)
	}
	if count >= int64(l.limit) {
		return false, nil
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := l.client.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return false, fmt.Errorf("record attempt: %w", err)
	}
	if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
		return false, fmt.Errorf("expire rate window: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// Ping checks if Redis is reachable.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
