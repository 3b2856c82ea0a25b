package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestRateLimiter_AllowWithDetails(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		userID := "user-1"
		limit := 5

		for i := 0; i < 5; i++ {
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, userID, limit)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, limit-i-1, remaining)
			assert.False(t, resetAt.IsZero())
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, _, _, err := limiter.AllowWithDetails(ctx, "user-2", 3)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "user-2", 3)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)

		// Denied requests are not recorded
		usage, err := limiter.GetCurrentUsage(ctx, "user-2")
		require.NoError(t, err)
		assert.Equal(t, int64(3), usage)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		for i := 0; i < 20; i++ {
			allowed, _, _, err := limiter.AllowWithDetails(context.Background(), "user-3", 0)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("window slides", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		clock := &fakeClock{t: time.Now()}
		limiter := NewRateLimiter(client)
		limiter.now = clock.now
		ctx := context.Background()

		allowed, _, resetAt, err := limiter.AllowWithDetails(ctx, "user-4", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.WithinDuration(t, clock.t.Add(time.Minute), resetAt, time.Millisecond)

		allowed, _, _, _ = limiter.AllowWithDetails(ctx, "user-4", 1)
		assert.False(t, allowed)

		clock.t = clock.t.Add(61 * time.Second)
		allowed, _, _, err = limiter.AllowWithDetails(ctx, "user-4", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reset clears the window", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		_, _, _, _ = limiter.AllowWithDetails(ctx, "user-5", 1)
		allowed, _, _, _ := limiter.AllowWithDetails(ctx, "user-5", 1)
		assert.False(t, allowed)

		require.NoError(t, limiter.Reset(ctx, "user-5"))
		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "user-5", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 0, remaining)
	})
}

func TestRateLimiter_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	mr.Close()

	_, _, _, err := NewRateLimiter(client).AllowWithDetails(context.Background(), "user", 5)
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	limiter := NewMemoryLimiter()
	limiter.now = clock.now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "user", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1-i, remaining)
	}

	allowed, _, resetAt, _ := limiter.AllowWithDetails(ctx, "user", 2)
	assert.False(t, allowed)
	assert.Equal(t, clock.t.Add(time.Minute), resetAt)

	// Other keys are independent
	allowed, _, _, _ = limiter.AllowWithDetails(ctx, "other", 2)
	assert.True(t, allowed)

	clock.t = clock.t.Add(time.Minute + time.Second)
	allowed, _, _, _ = limiter.AllowWithDetails(ctx, "user", 2)
	assert.True(t, allowed)
}

func TestNoopLimiter(t *testing.T) {
	limiter := NewNoopLimiter()
	for i := 0; i < 100; i++ {
		allowed, _, _, err := limiter.AllowWithDetails(context.Background(), "any-key", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
