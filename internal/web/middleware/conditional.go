package middleware

import (
	"net/http"
	"strings"
)

// Predicate is a function that determines if middleware should be applied
type Predicate func(*http.Request) bool

// Conditional wraps middleware to only apply it when a predicate is true
func Conditional(predicate Predicate, middleware Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if predicate(r) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PathPrefix creates a predicate that matches requests with a path prefix
func PathPrefix(prefix string) Predicate {
	return func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, prefix)
	}
}

// Not negates a predicate
func Not(predicate Predicate) Predicate {
	return func(r *http.Request) bool {
		return !predicate(r)
	}
}
