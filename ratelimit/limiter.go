// Package ratelimit throttles inbound WebSocket events per connection, either
// in process or against a shared Redis instance.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more event is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Forget drops any state kept for key.
	Forget(ctx context.Context, key string) error
	Close() error
}

// Config holds limiter configuration.
type Config struct {
	// Limit is the number of events allowed per Window. Zero disables limiting.
	Limit  int
	Window time.Duration

	// RedisAddr selects the Redis limiter when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// KeyPrefix is the prefix for Redis keys.
	KeyPrefix string
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Limit:     20,
		Window:    time.Second,
		KeyPrefix: "chat:ratelimit:",
	}
}

// New builds the limiter selected by cfg. With Redis configured the
// connection is checked before returning.
func New(ctx context.Context, cfg Config) (Limiter, error) {
	if cfg.Limit <= 0 {
		return Unlimited{}, nil
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", cfg.Window)
	}
	if cfg.RedisAddr == "" {
		return NewLocalLimiter(cfg.Limit, cfg.Window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	return NewRedisLimiter(client, cfg.KeyPrefix, cfg.Limit, cfg.Window), nil
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
func (Unlimited) Forget(context.Context, string) error        { return nil }
func (Unlimited) Close() error                                { return nil }

// LocalLimiter keeps one token bucket per key in memory.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	every   rate.Limit
	burst   int
}

// NewLocalLimiter allows limit events per window per key, with bursts of up
// to limit.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*rate.Limiter),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
	}
}

// Allow consumes one token from key's bucket.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow(), nil
}

// Forget drops key's bucket.
func (l *LocalLimiter) Forget(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Close is a no-op.
func (l *LocalLimiter) Close() error {
	return nil
}

// Len returns the number of tracked keys.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
