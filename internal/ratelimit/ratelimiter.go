// Package ratelimit enforces per-user chat request limits over a one minute
// sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// Limiter is used to enforce per-key rate limits.
type Limiter interface {
	// AllowWithDetails records one request for key when allowed. remaining is
	// what is left in the current window, resetAt when the oldest entry expires.
	AllowWithDetails(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// NoopLimiter allows all requests
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	return true, limit, time.Time{}, nil
}

// RateLimiter implements distributed rate limiting using Redis sorted sets
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// AllowWithDetails checks and records a request. Denied requests are not
// recorded, so a blocked client does not extend its own window.
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, 0, time.Time{}, nil
	}

	rkey := redisKey(key)
	now := rl.now()
	windowStart := now.Add(-window)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, rkey)
	oldestCmd := pipe.ZRangeWithScores(ctx, rkey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	if count >= limit {
		return false, 0, resetAt, nil
	}

	pipe = rl.client.Pipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, rkey, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit record failed: %w", err)
	}

	return true, limit - count - 1, resetAt, nil
}

// GetCurrentUsage returns the current request count in the window
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	rkey := redisKey(key)
	windowStart := rl.now().Add(-window)

	if err := rl.client.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, rkey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}

	return count, nil
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, redisKey(key)).Err()
}

// MemoryLimiter is a single-process sliding window used when Redis is not configured
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: make(map[string][]time.Time), now: time.Now}
}

func (l *MemoryLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, 0, time.Time{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-window)

	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	resetAt := now.Add(window)
	if len(kept) > 0 {
		resetAt = kept[0].Add(window)
	}

	if len(kept) >= limit {
		l.entries[key] = kept
		return false, 0, resetAt, nil
	}

	l.entries[key] = append(kept, now)
	return true, limit - len(kept) - 1, resetAt, nil
}
