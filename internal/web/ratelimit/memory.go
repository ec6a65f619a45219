package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory token bucket limiter. A bucket holds at most
// capacity tokens and refills completely over one window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a limiter allowing capacity requests per window and
// key. Idle buckets are dropped in the background until Close.
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	ctx, cancel := context.WithCancel(context.Background())
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		now:      time.Now,
		cancel:   cancel,
	}
	go tb.cleanupLoop(ctx, 2*window)
	return tb
}

func (tb *TokenBucket) Allow(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), lastRefill: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens = min(float64(tb.capacity), b.tokens+float64(tb.capacity)*elapsed.Seconds()/tb.window.Seconds())
		b.lastRefill = now
	}

	info := Info{Limit: tb.capacity}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)
	// Time until the next whole token.
	missing := 1 - (b.tokens - float64(int(b.tokens)))
	if info.Remaining > 0 {
		missing = 0
	}
	info.ResetAt = now.Add(time.Duration(missing * float64(tb.window) / float64(tb.capacity)))
	return info, nil
}

func (tb *TokenBucket) cleanupLoop(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.removeIdle(idle)
		case <-ctx.Done():
			return
		}
	}
}

// removeIdle drops buckets that have been full for a while.
func (tb *TokenBucket) removeIdle(idle time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > idle {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() error {
	tb.cancel()
	return nil
}
