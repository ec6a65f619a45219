package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kwai-club/kwai/internal/web/response"
)

// RecoveryConfig holds configuration for the recovery middleware
type RecoveryConfig struct {
	// EnableStackTrace determines whether the stack is passed to Logger
	EnableStackTrace bool
	// Logger receives the recovered panic
	Logger func(error, []byte)
}

// Recovery creates a middleware that recovers from panics and answers with a
// JSON:API 500 error document.
func Recovery(logger func(error, []byte)) Middleware {
	return RecoveryWithConfig(RecoveryConfig{
		EnableStackTrace: true,
		Logger:           logger,
	})
}

// RecoveryWithConfig creates a recovery middleware with custom configuration
func RecoveryWithConfig(config RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// The server must see this one to abort the response.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var stack []byte
				if config.EnableStackTrace {
					stack = debug.Stack()
				}

				err, ok := rec.(error)
				if !ok {
					err = &panicError{value: rec}
				}
				if config.Logger != nil {
					config.Logger(err, stack)
				}

				response.RenderError(w, response.Internal(err))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// panicError wraps a non-error panic value
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
