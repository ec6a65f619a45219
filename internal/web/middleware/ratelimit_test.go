package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwai-club/kwai/internal/web/ratelimit"
)

type countingLimiter struct {
	limit int
	calls map[string]int
	err   error
	reset time.Time
}

func (l *countingLimiter) Allow(_ context.Context, key string) (ratelimit.Info, error) {
	if l.err != nil {
		return ratelimit.Info{}, l.err
	}
	l.calls[key]++
	remaining := max(l.limit-l.calls[key], 0)
	return ratelimit.Info{
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   l.reset,
		Allowed:   l.calls[key] <= l.limit,
	}, nil
}

func (l *countingLimiter) Close() error { return nil }

func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := &countingLimiter{limit: 2, calls: map[string]int{}, reset: now.Add(1500 * time.Millisecond)}
	handler := RateLimitWithConfig(RateLimitConfig{
		Limiter: limiter,
		KeyFunc: ClientIP(false),
		now:     func() time.Time { return now },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		rec := send("10.0.0.1:5000")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], rec.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, rec.Header().Get("Retry-After"))
	}

	rec := send("10.0.0.1:5001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/vnd.api+json")
	assert.Contains(t, rec.Body.String(), `"status":"429"`)

	// Another client has its own budget.
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	var reported error
	limiter := &countingLimiter{err: errors.New("redis down")}
	handler := RateLimit(limiter, func(err error) { reported = err })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualError(t, reported, "redis down")
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "remote address", remoteAddr: "192.0.2.7:4711", want: "192.0.2.7"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:4711", want: "2001:db8::1"},
		{name: "no port", remoteAddr: "192.0.2.7", want: "192.0.2.7"},
		{name: "forwarded header ignored", remoteAddr: "192.0.2.7:4711", forwarded: "198.51.100.1", want: "192.0.2.7"},
		{name: "trusted proxy", remoteAddr: "192.0.2.7:4711", forwarded: "198.51.100.1, 192.0.2.7", trustProxy: true, want: "198.51.100.1"},
		{name: "trusted proxy without header", remoteAddr: "192.0.2.7:4711", trustProxy: true, want: "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(tt.trustProxy)(req))
		})
	}
}
