package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts chat messages per user per UTC day
type RateLimiter interface {
	// CheckDailyLimit reports whether the user may send another message.
	// A limit of zero or less means unlimited.
	CheckDailyLimit(ctx context.Context, userID uint, limit int64) (allowed bool, used int64, err error)

	// IncrementDailyCount records one sent message
	IncrementDailyCount(ctx context.Context, userID uint) error

	// GetRemaining returns messages left today, or -1 when unlimited
	GetRemaining(ctx context.Context, userID uint, limit int64) (int64, error)
}

type redisRateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a Redis-backed limiter on a shared client
func NewRateLimiter(client *redis.Client, logger *slog.Logger) RateLimiter {
	return &redisRateLimiter{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// dailyKey format: rate:daily:{userID}:{YYYY-MM-DD}
func dailyKey(userID uint, now time.Time) string {
	return fmt.Sprintf("rate:daily:%d:%s", userID, now.UTC().Format("2006-01-02"))
}

func (r *redisRateLimiter) count(ctx context.Context, userID uint) (int64, error) {
	count, err := r.client.Get(ctx, dailyKey(userID, r.now())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func (r *redisRateLimiter) CheckDailyLimit(ctx context.Context, userID uint, limit int64) (bool, int64, error) {
	if limit <= 0 {
		return true, 0, nil
	}

	used, err := r.count(ctx, userID)
	if err != nil {
		r.logger.Error("❌ [RateLimiter] Failed to get daily count", "error", err, "user_id", userID)
		// Fail open: an unavailable limiter must not block chat
		return true, 0, err
	}

	return used < limit, used, nil
}

func (r *redisRateLimiter) IncrementDailyCount(ctx context.Context, userID uint) error {
	now := r.now().UTC()
	key := dailyKey(userID, now)
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, midnight.Sub(now))

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("❌ [RateLimiter] Failed to increment daily count", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *redisRateLimiter) GetRemaining(ctx context.Context, userID uint, limit int64) (int64, error) {
	if limit <= 0 {
		return -1, nil
	}

	used, err := r.count(ctx, userID)
	if err != nil {
		return 0, err
	}
	return max(limit-used, 0), nil
}

// NoOpRateLimiter always allows requests. Used when Redis is not available.
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a no-op rate limiter
func NewNoOpRateLimiter(logger *slog.Logger) RateLimiter {
	logger.Warn("⚠️ [RateLimiter] Using no-op rate limiter - rate limiting is disabled")
	return &NoOpRateLimiter{}
}

func (NoOpRateLimiter) CheckDailyLimit(context.Context, uint, int64) (bool, int64, error) {
	return true, 0, nil
}

func (NoOpRateLimiter) IncrementDailyCount(context.Context, uint) error {
	return nil
}

func (NoOpRateLimiter) GetRemaining(context.Context, uint, int64) (int64, error) {
	return -1, nil
}
