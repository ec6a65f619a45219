package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kwai-club/kwai/internal/web/ratelimit"
	"github.com/kwai-club/kwai/internal/web/response"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	// Limiter counts the requests
	Limiter ratelimit.Limiter
	// KeyFunc extracts the rate limit key from the request. An empty key
	// skips the limiter.
	KeyFunc func(*http.Request) string
	// OnError receives limiter failures. The request is allowed.
	OnError func(error)
	now     func() time.Time
}

// RateLimit limits requests per client IP address.
func RateLimit(limiter ratelimit.Limiter, onError func(error)) Middleware {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter: limiter,
		KeyFunc: ClientIP(false),
		OnError: onError,
	})
}

// RateLimitWithConfig creates a rate limiting middleware. Requests over the
// limit are answered with a JSON:API 429 and a Retry-After header.
func RateLimitWithConfig(config RateLimitConfig) Middleware {
	onError := config.OnError
	if onError == nil {
		onError = func(error) {}
	}
	now := config.now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := config.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := config.Limiter.Allow(r.Context(), key)
			if err != nil {
				onError(err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				// Rounded up so that a client retrying after exactly this
				// many seconds is allowed.
				retryAfter := max(int64((info.ResetAt.Sub(now())+time.Second-1)/time.Second), 0)
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				response.RenderError(w, response.NewHTTPError(http.StatusTooManyRequests, "Too many requests, try again later").
					WithCode("rate_limited"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns a key function giving the address of the client. With
// trustProxy, the first address of X-Forwarded-For is used when present;
// only enable it behind a proxy that sets the header.
func ClientIP(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}
