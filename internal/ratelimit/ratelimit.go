// Package ratelimit counts attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more attempt for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	count int
	reset time.Time
}

// MemoryLimiter keeps counts in process. Each key's window starts at its
// first attempt.
type MemoryLimiter struct {
	attempts map[string]*bucket
	limit    int
	window   time.Duration
	mutex    sync.Mutex
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string]*bucket),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, exists := rl.attempts[key]
	if !exists {
		rl.attempts[key] = &bucket{count: 1, reset: now.Add(rl.window)}
		return true, nil
	}
	if w.count >= rl.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweep drops expired windows. Caller holds the mutex.
func (rl *MemoryLimiter) sweep(now time.Time) {
	for key, w := range rl.attempts {
		if !now.Before(w.reset) {
			delete(rl.attempts, key)
		}
	}
}

// RedisLimiter shares counts between instances. The key expires one window
// after its first attempt.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := rl.prefix + key
	count, err := rl.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, k, rl.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return count <= int64(rl.limit), nil
}

// New returns a RedisLimiter when client is set, else a MemoryLimiter.
func New(client *redis.Client, limit int, window time.Duration) Limiter {
	if client != nil {
		return NewRedisLimiter(client, "kanban:signin:", limit, window)
	}
	return NewMemoryLimiter(limit, window)
}
