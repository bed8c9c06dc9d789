package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow is a Redis-backed sliding-window rate limiter. Entries
// are timestamps in a sorted set; the window slides continuously rather
// than resetting on a boundary.
type SlidingWindow struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// RateInfo reports the outcome of one limiter check
type RateInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// NewSlidingWindow creates a limiter over a one-minute window
func NewSlidingWindow(client *redis.Client) (*SlidingWindow, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &SlidingWindow{
		client: client,
		window: time.Minute,
		prefix: "forge:ratelimit:",
	}, nil
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, now)
		redis.call('EXPIRE', key, window)
		return {1, current + 1}
	end
	return {0, current}
`)

// Allow atomically records the request and reports whether it fits the
// limit
func (s *SlidingWindow) Allow(ctx context.Context, key string, limit int) (*RateInfo, error) {
	now := time.Now()
	windowStart := now.Add(-s.window)

	result, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixNano(),
		windowStart.UnixNano(),
		limit,
		int(s.window.Seconds()),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, errors.New("unexpected rate limit script result")
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &RateInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(s.window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset clears the window for a key
func (s *SlidingWindow) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
