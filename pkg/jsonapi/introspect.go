package jsonapi

import (
	"fmt"
	"reflect"
	"strings"

	kstrings "github.com/kwai-club/kwai/internal/util/strings"
)

type fieldKind int

const (
	idField fieldKind = iota
	attributeField
	relationshipField
)

// Field declares one member of a resource of type T: its id, an attribute or a
// relationship. Fields are created with ID, Attr and Rel.
type Field[T any] struct {
	kind     fieldKind
	name     string
	declared reflect.Type
	get      func(T) any
}

// ID declares the id accessor. The value is rendered as a string.
func ID[T, V any](get func(T) V) Field[T] {
	return Field[T]{
		kind:     idField,
		name:     "id",
		declared: reflect.TypeFor[V](),
		get:      func(t T) any { return get(t) },
	}
}

// Attr declares an attribute.
func Attr[T, V any](name string, get func(T) V) Field[T] {
	return Field[T]{
		kind:     attributeField,
		name:     name,
		declared: reflect.TypeFor[V](),
		get:      func(t T) any { return get(t) },
	}
}

// Rel declares a relationship. The declared type R decides the wire shape:
// *X is optional, []X or []*X is a list and *[]X is an optional list.
func Rel[T, R any](name string, get func(T) R) Field[T] {
	return Field[T]{
		kind:     relationshipField,
		name:     name,
		declared: reflect.TypeFor[R](),
		get:      func(t T) any { return get(t) },
	}
}

// Declaration is a resource declaration ready to be registered.
type Declaration interface {
	resourceType() reflect.Type
	resourceName() string
	describe(r *Registry) (*ResourceDescriptor, error)
}

type declaration[T any] struct {
	typeName string
	fields   []Field[T]
	infer    bool
}

// Define declares a resource from explicit fields only.
func Define[T any](typeName string, fields ...Field[T]) Declaration {
	return &declaration[T]{typeName: typeName, fields: fields}
}

// Infer declares a resource by walking the exported fields of T. A field named
// ID becomes the id; a field whose type is a registered resource (or the
// resource itself) becomes a relationship; every other field becomes an
// attribute named in snake_case. The jsonapi struct tag overrides this:
//
//	`jsonapi:"iso_2"`       attribute named iso_2
//	`jsonapi:"-"`           skipped
//	`jsonapi:"id"`          the id field
//	`jsonapi:"coaches,rel"` relationship, even when the target is registered later
//	`jsonapi:",attr"`       attribute, even when the type is a registered resource
//
// Explicit fields passed as overrides replace inferred members with the same
// name.
func Infer[T any](typeName string, overrides ...Field[T]) Declaration {
	return &declaration[T]{typeName: typeName, fields: overrides, infer: true}
}

func (d *declaration[T]) resourceType() reflect.Type {
	return baseType(reflect.TypeFor[T]())
}

func (d *declaration[T]) resourceName() string {
	return d.typeName
}

func (d *declaration[T]) describe(r *Registry) (*ResourceDescriptor, error) {
	goType := d.resourceType()
	if goType.Kind() != reflect.Struct {
		return nil, configError(d.typeName, "", "resource type %s is not a struct", goType)
	}
	desc := &ResourceDescriptor{typeName: d.typeName, goType: goType}

	if d.infer {
		if err := inferFields(desc, r); err != nil {
			return nil, err
		}
	}

	for _, f := range d.fields {
		get := f.get
		acc := func(entity any) (any, error) {
			t, ok := as[T](entity)
			if !ok {
				if rv := reflect.ValueOf(entity); rv.Kind() == reflect.Pointer && rv.IsNil() {
					return nil, fmt.Errorf("%w: nil %s", ErrMissingIdentifier, d.typeName)
				}
				return nil, fmt.Errorf("%w: %T is not a %s", ErrResourceNotRegistered, entity, d.typeName)
			}
			return get(t), nil
		}
		switch f.kind {
		case idField:
			desc.id = acc
		case attributeField:
			desc.relationships = removeRelationship(desc.relationships, f.name)
			desc.attributes = replaceAttribute(desc.attributes, Attribute{Name: f.name, Type: f.declared, get: acc})
		case relationshipField:
			rel, err := deriveRelationship(d.typeName, f.name, f.declared)
			if err != nil {
				return nil, err
			}
			rel.get = acc
			desc.attributes = removeAttribute(desc.attributes, f.name)
			desc.relationships = replaceRelationship(desc.relationships, rel)
		}
	}

	if err := desc.validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// deriveRelationship unwraps the declared type of a relationship:
// an outer pointer makes it optional, a slice or array makes it a list of its
// element type (one pointer on the element is a reference, not optionality).
func deriveRelationship(typeName, name string, declared reflect.Type) (Relationship, error) {
	rel := Relationship{Name: name, Type: declared}
	t := declared
	if t.Kind() == reflect.Pointer {
		rel.Optional = true
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		rel.List = true
		t = t.Elem()
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Pointer:
			return rel, configError(typeName, name, "list elements of %s must not be optional", declared)
		case reflect.Slice, reflect.Array:
			return rel, configError(typeName, name, "nested lists are not supported (%s)", declared)
		}
	}
	if t.Kind() != reflect.Struct {
		return rel, configError(typeName, name, "relationship type %s does not resolve to a struct", declared)
	}
	rel.ResourceType = t
	return rel, nil
}

type tagOptions struct {
	name  string
	skip  bool
	id    bool
	rel   bool
	attr  bool
	named bool
}

func parseTag(tag string) tagOptions {
	if tag == "-" {
		return tagOptions{skip: true}
	}
	parts := strings.Split(tag, ",")
	opts := tagOptions{name: parts[0], named: parts[0] != ""}
	if parts[0] == "id" {
		opts.id = true
	}
	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "rel":
			opts.rel = true
		case "attr":
			opts.attr = true
		case "id":
			opts.id = true
		}
	}
	return opts
}

func inferFields(desc *ResourceDescriptor, r *Registry) error {
	for _, sf := range reflect.VisibleFields(desc.goType) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		opts := parseTag(sf.Tag.Get("jsonapi"))
		if opts.skip {
			continue
		}
		get := fieldAccessor(desc.goType, sf.Index)

		if opts.id || (sf.Name == "ID" && !opts.named && !opts.rel && !opts.attr) {
			desc.id = get
			continue
		}

		name := opts.name
		if !opts.named {
			name = kstrings.ToSnakeCase(sf.Name)
		}

		if !opts.attr && (opts.rel || r.isResourceCandidate(sf.Type, desc.goType)) {
			rel, err := deriveRelationship(desc.typeName, name, sf.Type)
			if err != nil {
				return err
			}
			rel.get = get
			desc.relationships = append(desc.relationships, rel)
			continue
		}
		desc.attributes = append(desc.attributes, Attribute{Name: name, Type: sf.Type, get: get})
	}
	return nil
}

// fieldAccessor reads a struct field from an entity passed by value or pointer.
func fieldAccessor(goType reflect.Type, index []int) accessor {
	return func(entity any) (any, error) {
		rv := reflect.ValueOf(entity)
		for rv.IsValid() && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, fmt.Errorf("%w: nil %s", ErrMissingIdentifier, goType)
			}
			rv = rv.Elem()
		}
		if !rv.IsValid() || rv.Type() != goType {
			return nil, fmt.Errorf("%w: %T is not a %s", ErrResourceNotRegistered, entity, goType)
		}
		fv, err := rv.FieldByIndexErr(index)
		if err != nil {
			return nil, nil
		}
		return fv.Interface(), nil
	}
}

// as converts an entity passed by value or pointer to T.
func as[T any](entity any) (T, bool) {
	if t, ok := entity.(T); ok {
		return t, true
	}
	var zero T
	want := reflect.TypeFor[T]()
	rv := reflect.ValueOf(entity)
	for rv.IsValid() && rv.Kind() == reflect.Pointer && rv.Type() != want {
		if rv.IsNil() {
			return zero, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return zero, false
	}
	if rv.Type() == want {
		return rv.Interface().(T), true
	}
	if want.Kind() == reflect.Pointer && want.Elem() == rv.Type() {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		return p.Interface().(T), true
	}
	return zero, false
}

// baseType strips pointers.
func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// relatedBase strips pointers and one level of slice to find the struct a field
// could refer to.
func relatedBase(t reflect.Type) reflect.Type {
	t = baseType(t)
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = baseType(t.Elem())
	}
	return t
}

func replaceAttribute(attrs []Attribute, a Attribute) []Attribute {
	for i := range attrs {
		if attrs[i].Name == a.Name {
			attrs[i] = a
			return attrs
		}
	}
	return append(attrs, a)
}

func removeAttribute(attrs []Attribute, name string) []Attribute {
	for i := range attrs {
		if attrs[i].Name == name {
			return append(attrs[:i], attrs[i+1:]...)
		}
	}
	return attrs
}

func replaceRelationship(rels []Relationship, r Relationship) []Relationship {
	for i := range rels {
		if rels[i].Name == r.Name {
			rels[i] = r
			return rels
		}
	}
	return append(rels, r)
}

func removeRelationship(rels []Relationship, name string) []Relationship {
	for i := range rels {
		if rels[i].Name == name {
			return append(rels[:i], rels[i+1:]...)
		}
	}
	return rels
}
