package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding window limiter shared by every server using the
// same redis database.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// RedisConfig holds the connection and the limits of a RedisLimiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Limit    int
	Window   time.Duration
	// Prefix is prepended to every key; it defaults to "kwai:ratelimit:"
	Prefix string
}

// NewRedisLimiter connects to redis and checks the connection
func NewRedisLimiter(cfg RedisConfig) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisLimiterWithClient(client, cfg)
}

// NewRedisLimiterWithClient creates a limiter on an existing client. The
// limiter owns the client and closes it on Close.
func NewRedisLimiterWithClient(client *redis.Client, cfg RedisConfig) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "kwai:ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// slidingWindow keeps one sorted set member per allowed request, scored by
// its time in nanoseconds. Members carry a random suffix so that requests in
// the same nanosecond are counted apart. It returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, ARGV[2])
local current = redis.call('ZCARD', key)
local allowed = 0
if current < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[1] .. '-' .. ARGV[5])
	current = current + 1
	allowed = 1
end
redis.call('EXPIRE', key, ARGV[4])

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest_score = ARGV[1]
if oldest[2] then
	oldest_score = oldest[2]
end
return {allowed, current, oldest_score}
`)

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Info, error) {
	now := r.now()
	ttl := int(r.window.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	result, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixNano(),
		now.Add(-r.window).UnixNano(),
		r.limit,
		ttl,
		uuid.NewString(),
	).Slice()
	if err != nil {
		return Info{}, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(result) != 3 {
		return Info{}, errors.New("unexpected redis script result")
	}

	allowed, ok1 := result[0].(int64)
	count, ok2 := result[1].(int64)
	oldestRaw, ok3 := result[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return Info{}, errors.New("unexpected redis script result")
	}
	oldest, err := strconv.ParseFloat(oldestRaw, 64)
	if err != nil {
		return Info{}, fmt.Errorf("unexpected redis script result: %w", err)
	}

	info := Info{
		Limit:     r.limit,
		Remaining: max(r.limit-int(count), 0),
		ResetAt:   now,
		Allowed:   allowed == 1,
	}
	if info.Remaining == 0 {
		// The window frees up when the oldest request leaves it.
		info.ResetAt = time.Unix(0, int64(oldest)).Add(r.window)
	}
	return info, nil
}

// Reset removes all rate limit data for the given key
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the redis client
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
