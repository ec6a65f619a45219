package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kwai-club/kwai/internal/web/middleware"
)

// Router wraps a chi router and records every registered route for
// introspection. Sub-routers created with Route and With share the record.
type Router struct {
	mux    chi.Router
	prefix string
	labels []string
	table  *routeTable
}

type routeTable struct {
	routes []*Route
}

// Route represents a single registered route
type Route struct {
	Pattern    string // full pattern, e.g. /api/v1/teams/{id}
	Method     string
	Name       string
	Resource   string // JSON:API type served by the route
	Operation  CRUDOperation
	Middleware []string
	Parameters []RouteParameter
}

// RouteParameter describes a path parameter of a route
type RouteParameter struct {
	Name string
	Type string // uuid, int, string
}

// CRUDOperation represents a REST operation type
type CRUDOperation int

const (
	// OpUnknown is used for routes that are not tied to a resource
	OpUnknown CRUDOperation = iota
	// OpList represents the list/index operation (GET /)
	OpList
	// OpShow represents the show/read operation (GET /{id})
	OpShow
	// OpCreate represents the create operation (POST /)
	OpCreate
	// OpUpdate represents the partial update operation (PATCH /{id})
	OpUpdate
	// OpDelete represents the delete operation (DELETE /{id})
	OpDelete
)

// String returns the string representation of CRUDOperation
func (o CRUDOperation) String() string {
	switch o {
	case OpList:
		return "list"
	case OpShow:
		return "show"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return ""
	}
}

// NewRouter creates a new Router instance
func NewRouter() *Router {
	return &Router{
		mux:   chi.NewRouter(),
		table: &routeTable{},
	}
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to the router. Like chi, all middleware must be added
// before the first route.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// With returns a router whose routes are wrapped with middlewares. The name is
// recorded on those routes.
func (r *Router) With(name string, middlewares ...middleware.Middleware) *Router {
	chiMiddlewares := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, m := range middlewares {
		chiMiddlewares[i] = m
	}
	return &Router{
		mux:    r.mux.With(chiMiddlewares...),
		prefix: r.prefix,
		labels: append(append([]string(nil), r.labels...), name),
		table:  r.table,
	}
}

// Route mounts a sub-router on prefix.
func (r *Router) Route(prefix string, fn func(r *Router)) {
	r.mux.Route(prefix, func(sub chi.Router) {
		fn(&Router{
			mux:    sub,
			prefix: r.prefix + prefix,
			labels: r.labels,
			table:  r.table,
		})
	})
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodGet, pattern, handler)
}

// Post registers a POST route
func (r *Router) Post(pattern string, handler http.HandlerFunc) *Route {
	return r.addRoute(http.MethodPost, pattern, handler)
}

func (r *Router) addRoute(method, pattern string, handler http.HandlerFunc) *Route {
	r.mux.Method(method, pattern, handler)

	full := strings.TrimSuffix(r.prefix+pattern, "/")
	if full == "" {
		full = "/"
	}
	route := &Route{
		Pattern:    full,
		Method:     method,
		Middleware: append([]string(nil), r.labels...),
		Parameters: extractParameters(full),
	}
	r.table.routes = append(r.table.routes, route)
	return route
}

// Named sets a name for the route
func (route *Route) Named(name string) *Route {
	route.Name = name
	return route
}

// WithResource records the resource type and operation served by the route
func (route *Route) WithResource(resourceType string, operation CRUDOperation) *Route {
	route.Resource = resourceType
	route.Operation = operation
	return route
}

// Routes returns all registered routes ordered by pattern and method
func (r *Router) Routes() []*Route {
	routes := append([]*Route(nil), r.table.routes...)
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// Lookup returns a route by name
func (r *Router) Lookup(name string) (*Route, error) {
	for _, route := range r.table.routes {
		if route.Name == name {
			return route, nil
		}
	}
	return nil, fmt.Errorf("route not found: %s", name)
}

// NotFound sets the handler for 404 Not Found
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.mux.NotFound(handler)
}

// MethodNotAllowed sets the handler for 405 Method Not Allowed
func (r *Router) MethodNotAllowed(handler http.HandlerFunc) {
	r.mux.MethodNotAllowed(handler)
}

// extractParameters extracts parameter definitions from a route pattern
func extractParameters(pattern string) []RouteParameter {
	var params []RouteParameter
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name, _, _ := strings.Cut(strings.Trim(part, "{}"), ":")
			params = append(params, RouteParameter{
				Name: name,
				Type: inferParameterType(name),
			})
		}
	}
	return params
}

// inferParameterType infers the type of a parameter from its name
func inferParameterType(name string) string {
	switch {
	case name == "uuid" || strings.HasSuffix(name, "_uuid"):
		return "uuid"
	case name == "id" || strings.HasSuffix(name, "_id"):
		return "int"
	default:
		return "string"
	}
}
