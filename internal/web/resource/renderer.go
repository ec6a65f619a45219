// Package resource renders registered read models as JSON:API documents,
// applying the include, fields and page parameters of the request.
package resource

import (
	"net/http"

	"github.com/kwai-club/kwai/internal/web/query"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// HandlerFunc is an HTTP handler that returns its error instead of writing it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Page is one page of a collection: the requested window and the total number
// of resources matching the request.
type Page struct {
	Offset int
	Limit  int
	Total  int
}

// Renderer serializes entities with a sealed registry.
type Renderer struct {
	registry   *jsonapi.Registry
	serializer *jsonapi.Serializer
	onError    func(*http.Request, error)
}

// NewRenderer creates a renderer for the resources of a sealed registry.
// onError receives every error rendered as a server error; it may be nil.
func NewRenderer(registry *jsonapi.Registry, onError func(*http.Request, error)) *Renderer {
	return &Renderer{
		registry:   registry,
		serializer: jsonapi.NewSerializer(registry),
		onError:    onError,
	}
}

// Registry returns the registry the renderer serializes with.
func (rd *Renderer) Registry() *jsonapi.Registry {
	return rd.registry
}

// Handle adapts fn to an http.HandlerFunc. A returned error is rendered as a
// JSON:API error document.
func (rd *Renderer) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if status := response.RenderError(w, err); status >= http.StatusInternalServerError && rd.onError != nil {
			rd.onError(r, err)
		}
	}
}

// One renders entity as the primary data of a document.
func (rd *Renderer) One(w http.ResponseWriter, r *http.Request, status int, typeName string, entity any) error {
	opts, err := rd.options(r, typeName)
	if err != nil {
		return err
	}
	doc, err := rd.serializer.Serialize(entity, opts...)
	if err != nil {
		return err
	}
	response.ApplySparseFieldsets(doc, query.ParseFields(r))
	return response.RenderDocument(w, status, doc)
}

// Many renders a slice of entities as a collection. A non-nil page adds the
// pagination meta and links.
func (rd *Renderer) Many(w http.ResponseWriter, r *http.Request, typeName string, entities any, page *Page) error {
	opts, err := rd.options(r, typeName)
	if err != nil {
		return err
	}
	doc, err := rd.serializer.SerializeMany(entities, opts...)
	if err != nil {
		return err
	}
	if page != nil {
		response.Paginate(doc, r.URL.RequestURI(), page.Offset, page.Limit, page.Total)
	}
	response.ApplySparseFieldsets(doc, query.ParseFields(r))
	return response.RenderDocument(w, http.StatusOK, doc)
}

// options validates ?include against the shape of typeName. Without the
// parameter every related resource is included; an empty ?include= includes
// nothing.
func (rd *Renderer) options(r *http.Request, typeName string) ([]jsonapi.Option, error) {
	if !r.URL.Query().Has("include") {
		return nil, nil
	}
	include := query.ParseInclude(r)
	if len(include) == 0 {
		return []jsonapi.Option{jsonapi.WithInclude()}, nil
	}
	if err := rd.registry.Shapes().ValidateInclude(typeName, include); err != nil {
		return nil, err
	}
	return []jsonapi.Option{jsonapi.WithInclude(include...)}, nil
}
