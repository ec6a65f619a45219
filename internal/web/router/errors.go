package router

import (
	"fmt"
	"net/http"

	"github.com/kwai-club/kwai/internal/web/response"
)

// NotFoundHandler answers unknown paths with a JSON:API 404
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, response.NotFound(fmt.Sprintf("No route for %s", r.URL.Path)))
	}
}

// MethodNotAllowedHandler answers known paths with an unsupported method with
// a JSON:API 405
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, response.NewHTTPError(http.StatusMethodNotAllowed,
			fmt.Sprintf("Method %s is not allowed for %s", r.Method, r.URL.Path)))
	}
}

// SetupDefaultErrorHandlers configures the router with the JSON:API error handlers
func SetupDefaultErrorHandlers(r *Router) {
	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())
}
