package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisLimiter(t *testing.T, limit int, window time.Duration) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiterWithClient(client, limit, window)
}

func TestRedisLimiterEnforcesLimit(t *testing.T) {
	limiter := newMiniredisLimiter(t, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("attempt %d within the limit must be allowed", i)
		}
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if allowed {
		t.Fatalf("attempt over the limit must be denied")
	}
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	limiter := newMiniredisLimiter(t, 1, time.Hour)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "1.2.3.4"); !allowed {
		t.Fatalf("first key must be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "5.6.7.8"); !allowed {
		t.Fatalf("second key must have its own window")
	}
	if allowed, _ := limiter.Allow(ctx, "1.2.3.4"); allowed {
		t.Fatalf("first key is over its limit")
	}
}

func TestRedisLimiterErrorsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := NewRedisLimiterWithClient(client, 5, time.Hour)

	mr.Close()

	_, err := limiter.Allow(context.Background(), "1.2.3.4")
	if err == nil {
		t.Fatalf("expected an error when redis is unreachable")
	}
}
