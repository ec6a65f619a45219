// Package ratelimit counts requests per key and tells whether one more is
// allowed. Login attempts are throttled with it.
package ratelimit

import (
	"context"
	"time"

	"github.com/kwai-club/kwai/internal/config"
)

// Limiter decides whether a request for a key is allowed.
type Limiter interface {
	// Allow records one request for key and reports the resulting state.
	Allow(ctx context.Context, key string) (Info, error)
	// Close releases the backend
	Close() error
}

// Info contains information about the current rate limit state
type Info struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests remaining in the current window
	Remaining int
	// ResetAt is when a request will be allowed again
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed
	Allowed bool
}

// New returns a limiter allowing limit requests per window and key: shared
// through redis when an address is configured, per process otherwise.
func New(cfg config.RedisConfig, limit int, window time.Duration) (Limiter, error) {
	if cfg.Addr == "" {
		return NewTokenBucket(limit, window), nil
	}
	return NewRedisLimiter(RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Limit:    limit,
		Window:   window,
	})
}
