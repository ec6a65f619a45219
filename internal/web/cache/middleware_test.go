package cache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	calls map[string]int
}

func (c *counter) handler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.calls[r.Method+" "+r.URL.Path]++
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func serve(h http.Handler, method, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func backends(t *testing.T) map[string]Cache {
	mr := miniredis.RunT(t)
	redisCache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), DefaultCacheConfig())
	memoryCache := NewMemoryCache()
	t.Cleanup(func() {
		redisCache.Close()
		memoryCache.Close()
	})
	return map[string]Cache{"memory": memoryCache, "redis": redisCache}
}

func TestCacheMiddlewareHitAndMiss(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := &counter{calls: map[string]int{}}
			h := CacheMiddleware(DefaultCacheMiddlewareConfig(backend, "/api/v1"))(c.handler(http.StatusOK, `{"data":[]}`))

			first := serve(h, http.MethodGet, "/api/v1/teams")
			assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
			assert.Equal(t, `{"data":[]}`, first.Body.String())
			assert.NotEmpty(t, first.Header().Get("ETag"))

			second := serve(h, http.MethodGet, "/api/v1/teams")
			assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
			assert.Equal(t, http.StatusOK, second.Code)
			assert.Equal(t, `{"data":[]}`, second.Body.String())
			assert.Equal(t, "application/vnd.api+json", second.Header().Get("Content-Type"))
			assert.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))
			assert.Equal(t, "no-cache", second.Header().Get("Cache-Control"))

			assert.Equal(t, 1, c.calls["GET /api/v1/teams"])
		})
	}
}

func TestCacheMiddlewareNotModified(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	h := CacheMiddleware(DefaultCacheMiddlewareConfig(NewMemoryCache(), "/api/v1"))(c.handler(http.StatusOK, `{"data":[]}`))

	etag := serve(h, http.MethodGet, "/api/v1/teams").Header().Get("ETag")

	rec := serve(h, http.MethodGet, "/api/v1/teams", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCacheMiddlewareInvalidation(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := &counter{calls: map[string]int{}}
			mux := http.NewServeMux()
			mux.Handle("GET /api/v1/teams", c.handler(http.StatusOK, `{"data":[]}`))
			mux.Handle("GET /api/v1/trainings", c.handler(http.StatusOK, `{"data":[]}`))
			mux.Handle("GET /api/v1/club/countries", c.handler(http.StatusOK, `{"data":[]}`))
			mux.Handle("POST /api/v1/teams/1/members", c.handler(http.StatusCreated, `{"data":{}}`))
			mux.Handle("POST /api/v1/teams/2/members", c.handler(http.StatusUnprocessableEntity, `{"errors":[]}`))

			config := DefaultCacheMiddlewareConfig(backend, "/api/v1")
			config.Dependents = map[string][]string{"teams": {"trainings"}}
			h := CacheMiddleware(config)(mux)

			for _, path := range []string{"/api/v1/teams", "/api/v1/trainings", "/api/v1/club/countries"} {
				serve(h, http.MethodGet, path)
			}

			failed := serve(h, http.MethodPost, "/api/v1/teams/2/members")
			assert.Equal(t, http.StatusUnprocessableEntity, failed.Code)
			assert.Equal(t, "HIT", serve(h, http.MethodGet, "/api/v1/teams").Header().Get("X-Cache"), "failed mutations keep the cache")

			created := serve(h, http.MethodPost, "/api/v1/teams/1/members")
			assert.Equal(t, http.StatusCreated, created.Code)
			assert.Equal(t, `{"data":{}}`, created.Body.String())

			assert.Equal(t, "MISS", serve(h, http.MethodGet, "/api/v1/teams").Header().Get("X-Cache"))
			assert.Equal(t, "MISS", serve(h, http.MethodGet, "/api/v1/trainings").Header().Get("X-Cache"))
			assert.Equal(t, "HIT", serve(h, http.MethodGet, "/api/v1/club/countries").Header().Get("X-Cache"))
		})
	}
}

func TestCacheMiddlewareBypass(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	config := DefaultCacheMiddlewareConfig(NewMemoryCache(), "/api/v1")
	config.SkipPaths = []string{"/api/v1/schemas/teams"}
	h := CacheMiddleware(config)(c.handler(http.StatusOK, "{}"))

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "/api/v1/auth/me", "Authorization", "Bearer token")
		assert.Empty(t, rec.Header().Get("X-Cache"))
		serve(h, http.MethodGet, "/api/v1/schemas/teams")
	}
	assert.Equal(t, 2, c.calls["GET /api/v1/auth/me"])
	assert.Equal(t, 2, c.calls["GET /api/v1/schemas/teams"])
}

func TestCacheMiddlewareDoesNotStoreErrors(t *testing.T) {
	c := &counter{calls: map[string]int{}}
	h := CacheMiddleware(DefaultCacheMiddlewareConfig(NewMemoryCache(), "/api/v1"))(c.handler(http.StatusNotFound, `{"errors":[]}`))

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "/api/v1/teams/9")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, c.calls["GET /api/v1/teams/9"])
}

func TestCacheMiddlewareBackendFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), DefaultCacheConfig())
	defer backend.Close()
	mr.SetError("LOADING")

	var errs []error
	config := DefaultCacheMiddlewareConfig(backend, "/api/v1")
	config.OnError = func(err error) { errs = append(errs, err) }

	c := &counter{calls: map[string]int{}}
	rec := serve(CacheMiddleware(config)(c.handler(http.StatusOK, "{}")), http.MethodGet, "/api/v1/teams")

	assert.Equal(t, http.StatusOK, rec.Code, "the request is served without the cache")
	require.NotEmpty(t, errs)
	assert.False(t, IsCacheMiss(errors.Join(errs...)))
}

func TestInvalidator(t *testing.T) {
	backend := NewMemoryCache()
	defer backend.Close()
	kg := DefaultKeyGenerator("/api/v1")
	ctx := t.Context()

	require.NoError(t, backend.Set(ctx, "doc:teams:a", []byte("a"), 0))
	require.NoError(t, backend.Set(ctx, "doc:club:b", []byte("b"), 0))
	require.NoError(t, backend.Set(ctx, "session:c", []byte("c"), 0))

	inv := NewInvalidator(backend, kg)
	n, err := inv.InvalidateScope(ctx, "teams")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = inv.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = backend.Get(ctx, "session:c")
	assert.NoError(t, err)
}
