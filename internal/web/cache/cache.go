package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kwai-club/kwai/internal/config"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL. A zero TTL uses the default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every value whose key starts with prefix and
	// returns how many were removed
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases the backend
	Close() error
}

// CacheConfig holds common configuration for cache backends
type CacheConfig struct {
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "kwai:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

// New returns the cache selected by cfg: redis when an address is configured,
// memory otherwise.
func New(cfg config.RedisConfig) (Cache, error) {
	cacheConfig := DefaultCacheConfig()
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = cfg.TTL
	}

	if cfg.Addr == "" {
		return NewMemoryCacheWithConfig(cacheConfig), nil
	}

	return NewRedisCacheWithConfig(RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		CacheConfig: cacheConfig,
	})
}
