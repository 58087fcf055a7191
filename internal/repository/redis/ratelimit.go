package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "ratelimit:"
)

// RateLimiter counts requests per key in fixed windows
type RateLimiter struct {
	client *Client
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window. name
// separates the counters of limiters sharing one Redis.
func NewRateLimiter(client *Client, name string, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow checks if a request should be allowed based on rate limits
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := r.now()
	windowStart := now.Truncate(r.window)
	windowEnd := windowStart.Add(r.window)
	fullKey := fmt.Sprintf("%s%s:%s:%d", rateLimitPrefix, r.name, key, windowStart.Unix())

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, r.window)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	remaining := max(r.limit-int(count), 0)

	return count <= int64(r.limit), remaining, windowEnd, nil
}

// Limit returns the number of requests allowed per window
func (r *RateLimiter) Limit() int {
	return r.limit
}

// Reset resets the rate limit counter for a key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	windowStart := r.now().Truncate(r.window)
	fullKey := fmt.Sprintf("%s%s:%s:%d", rateLimitPrefix, r.name, key, windowStart.Unix())
	return r.client.rdb.Del(ctx, fullKey).Err()
}
