package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwai-club/kwai/internal/config"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, DefaultCacheConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNew(t *testing.T) {
	t.Run("memory without address", func(t *testing.T) {
		c, err := New(config.RedisConfig{})
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &MemoryCache{}, c)
	})

	t.Run("redis with address", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := New(config.RedisConfig{Addr: mr.Addr(), TTL: time.Minute})
		require.NoError(t, err)
		defer c.Close()

		require.IsType(t, &RedisCache{}, c)
		assert.Equal(t, time.Minute, c.(*RedisCache).config.DefaultTTL)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := New(config.RedisConfig{Addr: addr})
		assert.ErrorContains(t, err, "failed to connect to redis")
	})
}

func TestRedisCacheSetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "doc:teams:1", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "doc:teams:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
	assert.True(t, mr.Exists("kwai:doc:teams:1"), "keys are prefixed")
	assert.Equal(t, time.Minute, mr.TTL("kwai:doc:teams:1"))

	_, err = c.Get(ctx, "doc:teams:2")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCacheTTL(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "default", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "forever", []byte("2"), -1))
	assert.Equal(t, 5*time.Minute, mr.TTL("kwai:default"))
	assert.Zero(t, mr.TTL("kwai:forever"))

	mr.FastForward(6 * time.Minute)
	_, err := c.Get(ctx, "default")
	assert.True(t, IsCacheMiss(err))
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("doc:teams:%d", i), []byte("x"), 0))
	}
	require.NoError(t, c.Set(ctx, "doc:club:1", []byte("x"), 0))
	require.NoError(t, mr.Set("other:doc:teams:1", "not ours"))

	n, err := c.DeletePrefix(ctx, "doc:teams:")
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	assert.True(t, mr.Exists("kwai:doc:club:1"))
	assert.True(t, mr.Exists("other:doc:teams:1"))

	require.NoError(t, c.Delete(ctx, "doc:club:1"))
	assert.False(t, mr.Exists("kwai:doc:club:1"))
}

func TestRedisCacheServerError(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.SetError("READONLY")

	_, err := c.Get(context.Background(), "doc:teams:1")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `kwai:doc:a\*b\?\[c\]`, escapePattern("kwai:doc:a*b?[c]"))
}
