package jsonapi

import (
	"encoding/json"
)

// ResourceIdentifier is the minimal {type, id} reference to a resource.
type ResourceIdentifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RelationshipObject holds the linkage of one relationship: a single identifier,
// a list of identifiers or null.
type RelationshipObject struct {
	one  *ResourceIdentifier
	many []ResourceIdentifier
	list bool
}

// ToOne creates a to-one relationship. A nil identifier renders as null.
func ToOne(id *ResourceIdentifier) RelationshipObject {
	return RelationshipObject{one: id}
}

// ToMany creates a to-many relationship. It always renders as an array.
func ToMany(ids []ResourceIdentifier) RelationshipObject {
	if ids == nil {
		ids = []ResourceIdentifier{}
	}
	return RelationshipObject{many: ids, list: true}
}

// Null creates a relationship without linkage.
func Null() RelationshipObject {
	return RelationshipObject{}
}

// IsNull reports whether the relationship renders as null.
func (r RelationshipObject) IsNull() bool {
	return !r.list && r.one == nil
}

// IsList reports whether the relationship renders as an array.
func (r RelationshipObject) IsList() bool {
	return r.list
}

// Identifier returns the linkage of a to-one relationship.
func (r RelationshipObject) Identifier() (ResourceIdentifier, bool) {
	if r.list || r.one == nil {
		return ResourceIdentifier{}, false
	}
	return *r.one, true
}

// Identifiers returns the linkage as a slice: empty for null, one element for a
// to-one relationship.
func (r RelationshipObject) Identifiers() []ResourceIdentifier {
	if r.list {
		out := make([]ResourceIdentifier, len(r.many))
		copy(out, r.many)
		return out
	}
	if r.one == nil {
		return nil
	}
	return []ResourceIdentifier{*r.one}
}

// MarshalJSON renders {"data": ...}.
func (r RelationshipObject) MarshalJSON() ([]byte, error) {
	var data any
	switch {
	case r.list:
		data = r.many
	case r.one != nil:
		data = r.one
	}
	return json.Marshal(struct {
		Data any `json:"data"`
	}{Data: data})
}

// ResourceObject is the wire representation of one entity.
type ResourceObject struct {
	ID            string
	Type          string
	Attributes    map[string]any
	Relationships map[string]RelationshipObject
	Meta          map[string]any
}

// Identifier returns the {type, id} reference of the resource.
func (r *ResourceObject) Identifier() ResourceIdentifier {
	return ResourceIdentifier{ID: r.ID, Type: r.Type}
}

// MarshalJSON omits relationships and meta when there are none.
func (r *ResourceObject) MarshalJSON() ([]byte, error) {
	attributes := r.Attributes
	if attributes == nil {
		attributes = map[string]any{}
	}
	return json.Marshal(struct {
		ID            string                        `json:"id"`
		Type          string                        `json:"type"`
		Attributes    map[string]any                `json:"attributes"`
		Relationships map[string]RelationshipObject `json:"relationships,omitempty"`
		Meta          map[string]any                `json:"meta,omitempty"`
	}{
		ID:            r.ID,
		Type:          r.Type,
		Attributes:    attributes,
		Relationships: r.Relationships,
		Meta:          r.Meta,
	})
}

// Links holds the top level links of a document.
type Links struct {
	Self  string `json:"self,omitempty"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// ErrorSource points at the cause of an error.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is a JSON:API error.
type ErrorObject struct {
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// Document is a JSON:API top level document.
//
// Included resources are kept in order of first insertion and are unique by
// (type, id). A resource that is part of the primary data is never included.
type Document struct {
	data     []*ResourceObject
	many     bool
	included []*ResourceObject
	index    map[ResourceIdentifier]int

	Meta   map[string]any
	Links  *Links
	Errors []*ErrorObject
}

// NewDocument creates a document with a single primary resource.
func NewDocument(resource *ResourceObject) *Document {
	return &Document{data: []*ResourceObject{resource}}
}

// NewCollectionDocument creates a document whose primary data is a list.
func NewCollectionDocument(resources ...*ResourceObject) *Document {
	data := make([]*ResourceObject, 0, len(resources))
	data = append(data, resources...)
	return &Document{data: data, many: true}
}

// NewErrorDocument creates a document that only carries errors.
func NewErrorDocument(errs ...*ErrorObject) *Document {
	return &Document{Errors: errs}
}

// IsCollection reports whether the primary data renders as an array.
func (d *Document) IsCollection() bool {
	return d.many
}

// Resource returns the primary resource of a single resource document.
func (d *Document) Resource() (*ResourceObject, bool) {
	if d.many || len(d.data) != 1 {
		return nil, false
	}
	return d.data[0], true
}

// Resources returns the primary data as a slice.
func (d *Document) Resources() []*ResourceObject {
	out := make([]*ResourceObject, len(d.data))
	copy(out, d.data)
	return out
}

// Included returns the included resources in insertion order.
func (d *Document) Included() []*ResourceObject {
	out := make([]*ResourceObject, 0, len(d.included))
	for _, r := range d.included {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Include adds a resource to the included list. It returns false when a
// resource with the same (type, id) is already included or is primary data.
func (d *Document) Include(resource *ResourceObject) bool {
	key := resource.Identifier()
	if d.isPrimary(key) {
		return false
	}
	if d.index == nil {
		d.index = make(map[ResourceIdentifier]int)
	}
	if _, ok := d.index[key]; ok {
		return false
	}
	d.index[key] = len(d.included)
	d.included = append(d.included, resource)
	return true
}

// SetMeta stores a meta value.
func (d *Document) SetMeta(key string, value any) {
	if d.Meta == nil {
		d.Meta = make(map[string]any)
	}
	d.Meta[key] = value
}

// Merge appends the primary data of other to d and unions the included
// resources. A single resource document becomes a collection. Meta is not merged.
func (d *Document) Merge(other *Document) {
	d.many = true
	d.data = append(d.data, other.data...)
	d.pruneIncluded()
	for _, r := range other.Included() {
		d.Include(r)
	}
}

func (d *Document) isPrimary(key ResourceIdentifier) bool {
	for _, r := range d.data {
		if r.Identifier() == key {
			return true
		}
	}
	return false
}

// pruneIncluded drops included resources that became primary data.
func (d *Document) pruneIncluded() {
	if len(d.included) == 0 {
		return
	}
	kept := d.included[:0]
	d.index = make(map[ResourceIdentifier]int, len(d.included))
	for _, r := range d.included {
		if r == nil || d.isPrimary(r.Identifier()) {
			continue
		}
		d.index[r.Identifier()] = len(kept)
		kept = append(kept, r)
	}
	for i := len(kept); i < len(d.included); i++ {
		d.included[i] = nil
	}
	d.included = kept
}

// MarshalJSON renders the document. included, meta, links and errors are
// omitted when empty; data is omitted only for error documents.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 5)
	switch {
	case d.many:
		data := d.data
		if data == nil {
			data = []*ResourceObject{}
		}
		out["data"] = data
	case len(d.data) == 1:
		out["data"] = d.data[0]
	case len(d.Errors) == 0:
		out["data"] = nil
	}
	if included := d.Included(); len(included) > 0 {
		out["included"] = included
	}
	if len(d.Meta) > 0 {
		out["meta"] = d.Meta
	}
	if d.Links != nil {
		out["links"] = d.Links
	}
	if len(d.Errors) > 0 {
		out["errors"] = d.Errors
	}
	return json.Marshal(out)
}
