package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired entries and records the event only when the
// window still has room. Members get a counter suffix so events sharing a
// millisecond stay distinct.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)
	if current >= limit then
		return {0, 0}
	end

	local counter = redis.call('INCR', key .. ':counter')
	redis.call('ZADD', key, now, now .. ':' .. counter)
	local expire_seconds = math.ceil(window_ms / 1000)
	redis.call('EXPIRE', key, expire_seconds)
	redis.call('EXPIRE', key .. ':counter', expire_seconds)
	return {1, limit - current - 1}
`)

// RedisLimiter implements a sliding window limiter shared by every process
// connected to the same Redis.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// NewRedisLimiter creates a limiter on top of client.
func NewRedisLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
		now:       time.Now,
	}
}

// Allow records one event for key if the window has room.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowStartMs := now.Add(-l.window).UnixMilli()

	result, err := slidingWindow.Run(ctx, l.client, []string{l.keyPrefix + key},
		nowMs, windowStartMs, l.limit, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 2 {
		return false, fmt.Errorf("unexpected Redis response length: %d", len(result))
	}
	return result[0] == 1, nil
}

// Forget clears the window for key.
func (l *RedisLimiter) Forget(ctx context.Context, key string) error {
	redisKey := l.keyPrefix + key
	return l.client.Del(ctx, redisKey, redisKey+":counter").Err()
}

// Count returns the number of events currently in key's window.
func (l *RedisLimiter) Count(ctx context.Context, key string) (int, error) {
	redisKey := l.keyPrefix + key
	windowStart := l.now().Add(-l.window)

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, err
	}
	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close closes the Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
