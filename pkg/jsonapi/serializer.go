package jsonapi

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// Option configures one serialization call.
type Option func(*options)

type options struct {
	include *includeTree
}

// includeTree is a parsed include parameter: relationship name to nested tree.
// A nil tree includes every reachable resource. Nodes are compared by
// identity to know which paths a resource was already expanded for.
type includeTree struct {
	children map[string]*includeTree
}

func newIncludeTree() *includeTree {
	return &includeTree{children: map[string]*includeTree{}}
}

// WithInclude limits the included resources to the given dotted relationship
// paths, as in ?include=members.nationality. Relationship linkage is always
// rendered; only the included list is affected.
func WithInclude(paths ...string) Option {
	return func(o *options) {
		tree := newIncludeTree()
		for _, path := range paths {
			node := tree
			for _, name := range strings.Split(path, ".") {
				if name == "" {
					continue
				}
				next, ok := node.children[name]
				if !ok {
					next = newIncludeTree()
					node.children[name] = next
				}
				node = next
			}
		}
		o.include = tree
	}
}

// Serializer turns registered entities into documents. It only reads the
// registry, so one Serializer can serve concurrent requests once the registry is
// sealed.
type Serializer struct {
	registry *Registry
}

// NewSerializer creates a serializer for the resources of registry.
func NewSerializer(registry *Registry) *Serializer {
	return &Serializer{registry: registry}
}

// Serialize creates a document with entity as primary data. Every resource
// reachable through relationships is included once; entity itself never is.
func (s *Serializer) Serialize(entity any, opts ...Option) (*Document, error) {
	o := applyOptions(opts)
	w := s.newWalk(o)

	desc, key, err := w.identify(entity, nil)
	if err != nil {
		return nil, err
	}
	w.seen[key] = true
	w.markExpanded(key, o.include)

	obj, err := w.resource(desc, entity, key.ID, o.include, []string{rootSegment(key)})
	if err != nil {
		return nil, err
	}
	doc := NewDocument(obj)
	w.flush(doc)
	return doc, nil
}

// SerializeMany creates a collection document from a slice or array of
// entities. Resources that are part of the primary data are never included.
func (s *Serializer) SerializeMany(entities any, opts ...Option) (*Document, error) {
	rv := reflect.ValueOf(entities)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return NewCollectionDocument(), nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("jsonapi: SerializeMany expects a slice, got %T", entities)
	}
	items := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items = append(items, rv.Index(i).Interface())
	}
	return s.serializeAll(items, applyOptions(opts))
}

// SerializeSeq creates a collection document from an iterator, serializing the
// entities in the order they are produced.
func SerializeSeq[T any](s *Serializer, seq iter.Seq[T], opts ...Option) (*Document, error) {
	var items []any
	for entity := range seq {
		items = append(items, entity)
	}
	return s.serializeAll(items, applyOptions(opts))
}

func (s *Serializer) serializeAll(items []any, o options) (*Document, error) {
	w := s.newWalk(o)

	type primary struct {
		desc *ResourceDescriptor
		key  ResourceIdentifier
	}
	primaries := make([]primary, 0, len(items))
	for i, entity := range items {
		desc, key, err := w.identify(entity, []string{fmt.Sprintf("[%d]", i)})
		if err != nil {
			return nil, err
		}
		w.seen[key] = true
		w.markExpanded(key, o.include)
		primaries = append(primaries, primary{desc: desc, key: key})
	}

	resources := make([]*ResourceObject, 0, len(items))
	for i, entity := range items {
		p := primaries[i]
		obj, err := w.resource(p.desc, entity, p.key.ID, o.include, []string{rootSegment(p.key)})
		if err != nil {
			return nil, err
		}
		resources = append(resources, obj)
	}
	doc := NewCollectionDocument(resources...)
	w.flush(doc)
	return doc, nil
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Serializer) newWalk(o options) *walk {
	return &walk{
		registry: s.registry,
		all:      o.include == nil,
		seen:     make(map[ResourceIdentifier]bool),
		expanded: make(map[ResourceIdentifier][]*includeTree),
	}
}

// walk is the state of one depth-first serialization pass.
type walk struct {
	registry *Registry
	all      bool
	seen     map[ResourceIdentifier]bool
	// expanded lists, per resource, the include subtrees its relationships
	// were walked with. A resource reached again through another include
	// path is walked again for that path, without being included twice.
	expanded map[ResourceIdentifier][]*includeTree
	// included holds resources in order of first discovery. A slot is reserved
	// before recursing so that a resource precedes the ones it relates to.
	included []*ResourceObject
}

func (w *walk) flush(doc *Document) {
	for _, obj := range w.included {
		if obj != nil {
			doc.Include(obj)
		}
	}
}

func (w *walk) identify(entity any, path []string) (*ResourceDescriptor, ResourceIdentifier, error) {
	desc, err := w.registry.Lookup(entity)
	if err != nil {
		return nil, ResourceIdentifier{}, fail(path, err)
	}
	key, err := desc.Identifier(entity)
	if err != nil {
		return nil, ResourceIdentifier{}, fail(path, err)
	}
	return desc, key, nil
}

func (w *walk) resource(desc *ResourceDescriptor, entity any, id string, include *includeTree, path []string) (*ResourceObject, error) {
	obj := &ResourceObject{
		ID:         id,
		Type:       desc.typeName,
		Attributes: make(map[string]any, len(desc.attributes)),
	}
	for _, a := range desc.attributes {
		value, err := a.get(entity)
		if err != nil {
			return nil, fail(appendPath(path, a.Name), err)
		}
		obj.Attributes[a.Name] = value
	}

	if len(desc.relationships) == 0 {
		return obj, nil
	}
	obj.Relationships = make(map[string]RelationshipObject, len(desc.relationships))
	for _, rel := range desc.relationships {
		relPath := appendPath(path, rel.Name)
		value, err := rel.get(entity)
		if err != nil {
			return nil, fail(relPath, err)
		}
		recurse, subtree := w.all, (*includeTree)(nil)
		if !w.all {
			subtree, recurse = include.children[rel.Name]
		}
		linkage, err := w.relationship(rel, value, recurse, subtree, relPath)
		if err != nil {
			return nil, err
		}
		obj.Relationships[rel.Name] = linkage
	}
	return obj, nil
}

func (w *walk) relationship(rel Relationship, value any, recurse bool, include *includeTree, path []string) (RelationshipObject, error) {
	rv := reflect.ValueOf(value)
	if rel.List {
		if rv.IsValid() && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return Null(), nil
			}
			rv = rv.Elem()
		}
		if !rv.IsValid() || ((rv.Kind() == reflect.Slice) && rv.IsNil()) {
			if rel.Optional {
				return Null(), nil
			}
			return ToMany(nil), nil
		}
		ids := make([]ResourceIdentifier, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() == reflect.Pointer && elem.IsNil() {
				continue
			}
			id, err := w.related(elem.Interface(), recurse, include, indexPath(path, i))
			if err != nil {
				return RelationshipObject{}, err
			}
			ids = append(ids, id)
		}
		return ToMany(ids), nil
	}

	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		if rel.Optional {
			return Null(), nil
		}
		return RelationshipObject{}, fail(path, ErrMissingRelationship)
	}
	id, err := w.related(value, recurse, include, path)
	if err != nil {
		return RelationshipObject{}, err
	}
	return ToOne(&id), nil
}

// related returns the identifier of a related entity and, when it has to be
// included and was not seen before, serializes it into the included list.
// The seen check happens before recursing, which also stops on cycles. A seen
// resource is only walked again for an include subtree it was not expanded
// with yet.
func (w *walk) related(entity any, recurse bool, include *includeTree, path []string) (ResourceIdentifier, error) {
	desc, key, err := w.identify(entity, path)
	if err != nil {
		return ResourceIdentifier{}, err
	}
	if !recurse {
		return key, nil
	}
	if w.seen[key] {
		if w.all || len(include.children) == 0 || w.isExpanded(key, include) {
			return key, nil
		}
		w.markExpanded(key, include)
		if _, err := w.resource(desc, entity, key.ID, include, path); err != nil {
			return ResourceIdentifier{}, err
		}
		return key, nil
	}
	w.seen[key] = true
	w.markExpanded(key, include)

	slot := len(w.included)
	w.included = append(w.included, nil)
	obj, err := w.resource(desc, entity, key.ID, include, path)
	if err != nil {
		return ResourceIdentifier{}, err
	}
	w.included[slot] = obj
	return key, nil
}

func (w *walk) isExpanded(key ResourceIdentifier, include *includeTree) bool {
	for _, t := range w.expanded[key] {
		if t == include {
			return true
		}
	}
	return false
}

func (w *walk) markExpanded(key ResourceIdentifier, include *includeTree) {
	if w.all || include == nil {
		return
	}
	w.expanded[key] = append(w.expanded[key], include)
}

func fail(path []string, err error) error {
	var serr *SerializationError
	if errors.As(err, &serr) {
		return err
	}
	return &SerializationError{Path: path, Err: err}
}

func rootSegment(key ResourceIdentifier) string {
	return key.Type + "(" + key.ID + ")"
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}

func indexPath(path []string, i int) []string {
	out := make([]string, len(path))
	copy(out, path)
	if len(out) > 0 {
		out[len(out)-1] = fmt.Sprintf("%s[%d]", out[len(out)-1], i)
	}
	return out
}
