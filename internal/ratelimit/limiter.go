// Package ratelimit provides sliding-window rate limiting for public
// review-link actions, keyed by source address. The store is injected so a
// single process can run on the in-memory limiter while multi-instance
// deployments share state through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether one more attempt is allowed for the given key
// within the window. Allowed attempts are recorded as a side effect.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps per-key attempt timestamps in process memory.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, at := range l.hits[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}

	l.hits[key] = append(kept, now)
	return true, nil
}
