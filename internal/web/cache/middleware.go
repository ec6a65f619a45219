package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CacheMiddlewareConfig holds configuration for the cache middleware
type CacheMiddlewareConfig struct {
	// Cache is the cache backend to use
	Cache Cache
	// KeyGenerator generates cache keys from requests
	KeyGenerator *KeyGenerator
	// TTL is the time-to-live for cached responses
	TTL time.Duration
	// SkipPaths is a list of paths to skip caching
	SkipPaths []string
	// CacheControl is the Cache-Control header to set on cacheable responses
	CacheControl string
	// Dependents lists, per scope, the other scopes whose documents embed
	// its resources. A mutation invalidates them too.
	Dependents map[string][]string
	// OnError receives cache backend failures. The request is still served.
	OnError func(error)
}

// DefaultCacheMiddlewareConfig returns a default cache middleware configuration
// for routes below prefix
func DefaultCacheMiddlewareConfig(cache Cache, prefix string) CacheMiddlewareConfig {
	return CacheMiddlewareConfig{
		Cache:        cache,
		KeyGenerator: DefaultKeyGenerator(prefix),
		TTL:          5 * time.Minute,
		CacheControl: "no-cache",
	}
}

// CacheMiddleware caches the successful responses to GET requests and drops
// the cached documents of a scope after a successful mutation in it.
// Requests carrying credentials are neither served from nor stored in the
// cache.
func CacheMiddleware(config CacheMiddlewareConfig) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}
	onError := config.OnError
	if onError == nil {
		onError = func(error) {}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet:
				if r.Header.Get("Authorization") != "" {
					next.ServeHTTP(w, r)
					return
				}
				serveCached(w, r, next, config, onError)
			case http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				recorder := newResponseRecorder()
				next.ServeHTTP(recorder, r)
				if recorder.statusCode >= 200 && recorder.statusCode < 300 {
					invalidate(r.Context(), config, config.KeyGenerator.Scope(r), onError)
				}
				recorder.copyTo(w)
			}
		})
	}
}

func serveCached(w http.ResponseWriter, r *http.Request, next http.Handler, config CacheMiddlewareConfig, onError func(error)) {
	ctx := r.Context()
	cacheKey := config.KeyGenerator.GenerateKey(r)

	data, err := config.Cache.Get(ctx, cacheKey)
	if err == nil {
		var cached cachedResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			if CheckConditionalRequest(w, r, cached.ETag, cached.LastModified) {
				return
			}
			for key, values := range cached.Headers {
				w.Header()[key] = values
			}
			SetCacheHeaders(w, cached.ETag, cached.LastModified, config.CacheControl)
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(cached.StatusCode)
			w.Write(cached.Body)
			return
		}
	} else if !IsCacheMiss(err) {
		onError(err)
	}

	recorder := newResponseRecorder()
	next.ServeHTTP(recorder, r)

	if recorder.statusCode == http.StatusOK {
		cached := cachedResponse{
			StatusCode:   recorder.statusCode,
			Headers:      recorder.Header().Clone(),
			Body:         recorder.body.Bytes(),
			ETag:         GenerateETag(recorder.body.Bytes()),
			LastModified: time.Now(),
		}
		if data, err := json.Marshal(cached); err == nil {
			if err := config.Cache.Set(ctx, cacheKey, data, config.TTL); err != nil {
				onError(err)
			}
		}

		if CheckConditionalRequest(w, r, cached.ETag, cached.LastModified) {
			return
		}
		SetCacheHeaders(w, cached.ETag, cached.LastModified, config.CacheControl)
	}

	w.Header().Set("X-Cache", "MISS")
	recorder.copyTo(w)
}

func invalidate(ctx context.Context, config CacheMiddlewareConfig, scope string, onError func(error)) {
	scopes := append([]string{scope}, config.Dependents[scope]...)
	for _, s := range scopes {
		if _, err := config.Cache.DeletePrefix(ctx, config.KeyGenerator.ScopePrefix(s)); err != nil {
			onError(err)
		}
	}
}

// cachedResponse represents a cached HTTP response
type cachedResponse struct {
	StatusCode   int
	Headers      http.Header
	Body         []byte
	ETag         string
	LastModified time.Time
}

// responseRecorder buffers a response so that cache headers can be added
// before anything is sent
type responseRecorder struct {
	header      http.Header
	statusCode  int
	body        bytes.Buffer
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

// WriteHeader records the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
}

// Write records the response body
func (r *responseRecorder) Write(b []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(b)
}

// copyTo sends the recorded response to w
func (r *responseRecorder) copyTo(w http.ResponseWriter) {
	for key, values := range r.header {
		w.Header()[key] = values
	}
	w.WriteHeader(r.statusCode)
	w.Write(r.body.Bytes())
}

// Invalidator drops cached documents outside of the middleware, e.g. after a
// migration or from a command.
type Invalidator struct {
	cache        Cache
	keyGenerator *KeyGenerator
}

// NewInvalidator creates a new cache invalidator
func NewInvalidator(cache Cache, keyGenerator *KeyGenerator) *Invalidator {
	return &Invalidator{
		cache:        cache,
		keyGenerator: keyGenerator,
	}
}

// InvalidateScope drops every cached document of scope
func (ci *Invalidator) InvalidateScope(ctx context.Context, scope string) (int, error) {
	return ci.cache.DeletePrefix(ctx, ci.keyGenerator.ScopePrefix(scope))
}

// InvalidateAll drops every cached document
func (ci *Invalidator) InvalidateAll(ctx context.Context) (int, error) {
	return ci.cache.DeletePrefix(ctx, documentKeyPrefix)
}
