package middleware

import (
	"net/http"
	"strings"

	"github.com/kwai-club/kwai/internal/web/auth"
	webcontext "github.com/kwai-club/kwai/internal/web/context"
	"github.com/kwai-club/kwai/internal/web/response"
)

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	// Tokens validates bearer tokens
	Tokens *auth.TokenService
	// SkipPaths is a list of paths to skip authentication
	SkipPaths []string
	// Optional lets requests without an Authorization header through
	// anonymously. A header that is sent must still carry a valid token.
	Optional bool
}

// Auth creates an authentication middleware with the given token service
func Auth(tokens *auth.TokenService) Middleware {
	return AuthWithConfig(AuthConfig{Tokens: tokens})
}

// OptionalAuth authenticates the requests that carry a bearer token and lets
// the others through without a current user.
func OptionalAuth(tokens *auth.TokenService) Middleware {
	return AuthWithConfig(AuthConfig{Tokens: tokens, Optional: true})
}

// AuthWithConfig creates an authentication middleware with custom configuration.
// A request without a valid bearer token is answered with a JSON:API 401.
// Otherwise the subject of the token is stored in the context.
func AuthWithConfig(config AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range config.SkipPaths {
				if r.URL.Path == skipPath {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && config.Optional {
				next.ServeHTTP(w, r)
				return
			}
			if authHeader == "" {
				unauthorized(w, "Authorization required")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "Invalid authorization format")
				return
			}

			claims, err := config.Tokens.ValidateToken(token)
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}

			ctx := webcontext.SetCurrentUser(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="kwai"`)
	response.RenderError(w, response.Unauthorized(detail))
}
