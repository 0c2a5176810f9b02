package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/testutil"
)

func TestRedisRateLimiter_DailyLimit(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	limiter := NewRateLimiter(client, testutil.TestLogger()).(*redisRateLimiter)
	limiter.now = func() time.Time { return time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, used, err := limiter.CheckDailyLimit(ctx, 7, 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i), used)
		require.NoError(t, limiter.IncrementDailyCount(ctx, 7))
	}

	allowed, used, err := limiter.CheckDailyLimit(ctx, 7, 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), used)

	remaining, err := limiter.GetRemaining(ctx, 7, 3)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	// Other users have their own counter
	allowed, _, err = limiter.CheckDailyLimit(ctx, 8, 3)
	require.NoError(t, err)
	assert.True(t, allowed)

	key := "rate:daily:7:2026-03-14"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Hour, mr.TTL(key))
}

func TestRedisRateLimiter_ResetsNextDay(t *testing.T) {
	_, client := testutil.NewMiniRedis(t)
	limiter := NewRateLimiter(client, testutil.TestLogger()).(*redisRateLimiter)
	ctx := context.Background()

	limiter.now = func() time.Time { return time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC) }
	require.NoError(t, limiter.IncrementDailyCount(ctx, 7))
	allowed, _, err := limiter.CheckDailyLimit(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	limiter.now = func() time.Time { return time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC) }
	allowed, used, err := limiter.CheckDailyLimit(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, used)
}

func TestRedisRateLimiter_Unlimited(t *testing.T) {
	_, client := testutil.NewMiniRedis(t)
	limiter := NewRateLimiter(client, testutil.TestLogger())
	ctx := context.Background()

	allowed, _, err := limiter.CheckDailyLimit(ctx, 7, 0)
	require.NoError(t, err)
	assert.True(t, allowed)

	remaining, err := limiter.GetRemaining(ctx, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), remaining)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	limiter := NewRateLimiter(client, testutil.TestLogger())
	mr.Close()

	allowed, _, err := limiter.CheckDailyLimit(context.Background(), 7, 3)
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := NewNoOpRateLimiter(testutil.TestLogger())
	ctx := context.Background()

	allowed, used, err := limiter.CheckDailyLimit(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, used)
	assert.NoError(t, limiter.IncrementDailyCount(ctx, 7))

	remaining, err := limiter.GetRemaining(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), remaining)
}
