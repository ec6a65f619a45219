package response

import (
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// ApplySparseFieldsets limits the fields of every resource in doc to the
// fieldsets requested with ?fields[type]=a,b. The fieldsets map uses resource
// types as keys.
//
// A fieldset names attributes and relationships alike; id and type are always
// kept. Types without a fieldset keep every field. Requesting a field that does
// not exist is not an error, it is silently ignored.
//
// Example usage in a handler:
//
//	doc, err := serializer.Serialize(team)
//	if err != nil { ... }
//	response.ApplySparseFieldsets(doc, query.ParseFields(r))
//	response.RenderDocument(w, http.StatusOK, doc)
func ApplySparseFieldsets(doc *jsonapi.Document, fieldsets map[string][]string) {
	if len(fieldsets) == 0 {
		return
	}

	for _, resource := range doc.Resources() {
		filterResource(resource, fieldsets)
	}
	for _, resource := range doc.Included() {
		filterResource(resource, fieldsets)
	}
}

// filterResource filters the attributes and relationships of a single resource
// object based on fieldsets.
func filterResource(resource *jsonapi.ResourceObject, fieldsets map[string][]string) {
	fields, ok := fieldsets[resource.Type]
	if !ok {
		return
	}

	// Build a set of allowed fields for O(1) lookup
	allowed := make(map[string]bool, len(fields))
	for _, field := range fields {
		allowed[field] = true
	}

	for name := range resource.Attributes {
		if !allowed[name] {
			delete(resource.Attributes, name)
		}
	}
	for name := range resource.Relationships {
		if !allowed[name] {
			delete(resource.Relationships, name)
		}
	}
}
