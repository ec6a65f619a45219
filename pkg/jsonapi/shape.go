package jsonapi

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// AttributeShape describes the wire form of one attribute.
type AttributeShape struct {
	Name     string
	Type     reflect.Type
	Nullable bool
}

// RelationshipShape describes the wire form of one relationship. Target may be a
// forward reference to a shape that is still being built when types relate to
// each other in a cycle.
type RelationshipShape struct {
	Name     string
	Optional bool
	List     bool
	Target   *ResourceShape
}

// ResourceShape is the shape of a resource object of one type. The identifier
// shape is {id: optional string, type: TypeName}.
type ResourceShape struct {
	TypeName      string
	Attributes    []AttributeShape
	Relationships []RelationshipShape
}

// Attribute looks up an attribute shape by name.
func (s *ResourceShape) Attribute(name string) (AttributeShape, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeShape{}, false
}

// Relationship looks up a relationship shape by name.
func (s *ResourceShape) Relationship(name string) (RelationshipShape, bool) {
	for _, r := range s.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return RelationshipShape{}, false
}

// DocumentShape is the shape of a document whose primary data is of one type.
// Included lists every resource shape reachable through relationships.
type DocumentShape struct {
	Resource *ResourceShape
	Included []*ResourceShape
}

// Shapes builds and caches the shapes of the resources of a registry.
type Shapes struct {
	registry  *Registry
	resources map[string]*ResourceShape
	documents map[string]*DocumentShape
}

func newShapes(r *Registry) *Shapes {
	return &Shapes{
		registry:  r,
		resources: make(map[string]*ResourceShape),
		documents: make(map[string]*DocumentShape),
	}
}

// Resource returns the resource shape of a type, building it on first use. A
// failed build leaves no shape behind, including the shapes of related types
// that were built along the way.
func (s *Shapes) Resource(typeName string) (*ResourceShape, error) {
	if shape, ok := s.resources[typeName]; ok {
		return shape, nil
	}
	desc, err := s.registry.Resource(typeName)
	if err != nil {
		return nil, err
	}

	var built []string
	shape, err := s.build(desc, &built)
	if err != nil {
		for _, name := range built {
			delete(s.resources, name)
		}
		return nil, err
	}
	return shape, nil
}

func (s *Shapes) build(desc *ResourceDescriptor, built *[]string) (*ResourceShape, error) {
	if shape, ok := s.resources[desc.typeName]; ok {
		return shape, nil
	}

	// Stored before the relationships are resolved so that a cycle back to this
	// type finds the in-progress shape instead of recursing.
	shape := &ResourceShape{TypeName: desc.typeName}
	s.resources[desc.typeName] = shape
	*built = append(*built, desc.typeName)

	for _, a := range desc.attributes {
		shape.Attributes = append(shape.Attributes, AttributeShape{
			Name:     a.Name,
			Type:     a.Type,
			Nullable: isNullable(a.Type),
		})
	}
	for _, rel := range desc.relationships {
		target, err := s.registry.LookupType(rel.ResourceType)
		if err != nil {
			return nil, fmt.Errorf("relationship %q of %q: %w", rel.Name, desc.typeName, err)
		}
		targetShape, err := s.build(target, built)
		if err != nil {
			return nil, err
		}
		shape.Relationships = append(shape.Relationships, RelationshipShape{
			Name:     rel.Name,
			Optional: rel.Optional,
			List:     rel.List,
			Target:   targetShape,
		})
	}
	return shape, nil
}

// Document returns the document shape of a type.
func (s *Shapes) Document(typeName string) (*DocumentShape, error) {
	if doc, ok := s.documents[typeName]; ok {
		return doc, nil
	}
	root, err := s.Resource(typeName)
	if err != nil {
		return nil, err
	}

	doc := &DocumentShape{Resource: root}
	seen := map[string]bool{}
	queue := []*ResourceShape{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, rel := range current.Relationships {
			if seen[rel.Target.TypeName] {
				continue
			}
			seen[rel.Target.TypeName] = true
			doc.Included = append(doc.Included, rel.Target)
			queue = append(queue, rel.Target)
		}
	}
	s.documents[typeName] = doc
	return doc, nil
}

// ValidateInclude checks that every dotted include path of a request names a
// chain of relationships starting at typeName.
func (s *Shapes) ValidateInclude(typeName string, paths []string) error {
	root, err := s.Resource(typeName)
	if err != nil {
		return err
	}
	for _, path := range paths {
		current := root
		for _, name := range strings.Split(path, ".") {
			rel, ok := current.Relationship(name)
			if !ok {
				return &DocumentError{
					Pointer: "include",
					Detail:  fmt.Sprintf("%q is not a relationship of %q", name, current.TypeName),
				}
			}
			current = rel.Target
		}
	}
	return nil
}

// JSONSchema renders the document shape as a JSON Schema object. Every
// resource shape is emitted once under $defs so recursive types stay finite.
func (d *DocumentShape) JSONSchema() map[string]any {
	defs := map[string]any{}
	addResourceDef(defs, d.Resource)

	resourceRef := map[string]any{"$ref": "#/$defs/" + d.Resource.TypeName}
	props := map[string]any{
		"data": map[string]any{
			"oneOf": []any{
				resourceRef,
				map[string]any{"type": "array", "items": resourceRef},
			},
		},
		"meta": map[string]any{"type": "object"},
	}
	if len(d.Included) > 0 {
		refs := make([]any, 0, len(d.Included))
		for _, inc := range d.Included {
			refs = append(refs, map[string]any{"$ref": "#/$defs/" + inc.TypeName})
		}
		props["included"] = map[string]any{
			"type":  "array",
			"items": map[string]any{"oneOf": refs},
		}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"title":      d.Resource.TypeName + " document",
		"type":       "object",
		"required":   []string{"data"},
		"properties": props,
		"$defs":      defs,
	}
}

func addResourceDef(defs map[string]any, shape *ResourceShape) {
	if _, ok := defs[shape.TypeName]; ok {
		return
	}
	// Placeholder first: relationships may lead back here.
	defs[shape.TypeName] = nil

	attrs := map[string]any{}
	required := make([]string, 0, len(shape.Attributes))
	for _, a := range shape.Attributes {
		attrs[a.Name] = schemaFor(a.Type)
		if !a.Nullable {
			required = append(required, a.Name)
		}
	}

	props := map[string]any{
		"id":   map[string]any{"type": []string{"string", "null"}},
		"type": map[string]any{"const": shape.TypeName},
		"attributes": map[string]any{
			"type":       "object",
			"properties": attrs,
			"required":   required,
		},
	}
	if len(shape.Relationships) > 0 {
		rels := map[string]any{}
		for _, rel := range shape.Relationships {
			identifier := map[string]any{
				"type":     "object",
				"required": []string{"id", "type"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string"},
					"type": map[string]any{"const": rel.Target.TypeName},
				},
			}
			var data any = identifier
			if rel.List {
				data = map[string]any{"type": "array", "items": identifier}
			}
			if rel.Optional {
				data = map[string]any{"oneOf": []any{data, map[string]any{"type": "null"}}}
			}
			rels[rel.Name] = map[string]any{
				"type":       "object",
				"properties": map[string]any{"data": data},
			}
			addResourceDef(defs, rel.Target)
		}
		props["relationships"] = map[string]any{"type": "object", "properties": rels}
	}

	defs[shape.TypeName] = map[string]any{
		"type":       "object",
		"required":   []string{"type", "attributes"},
		"properties": props,
	}
}

var timeType = reflect.TypeFor[time.Time]()

func schemaFor(t reflect.Type) map[string]any {
	nullable := isNullable(t)
	t = baseType(t)

	var schema map[string]any
	switch {
	case t == timeType:
		schema = map[string]any{"type": "string", "format": "date-time"}
	case t.Implements(reflect.TypeFor[fmt.Stringer]()):
		schema = map[string]any{"type": "string"}
	default:
		switch t.Kind() {
		case reflect.Bool:
			schema = map[string]any{"type": "boolean"}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			schema = map[string]any{"type": "integer"}
		case reflect.Float32, reflect.Float64:
			schema = map[string]any{"type": "number"}
		case reflect.String:
			schema = map[string]any{"type": "string"}
		case reflect.Slice, reflect.Array:
			schema = map[string]any{"type": "array", "items": schemaFor(t.Elem())}
		case reflect.Map, reflect.Struct:
			schema = map[string]any{"type": "object"}
		default:
			schema = map[string]any{}
		}
	}
	if nullable {
		if typ, ok := schema["type"].(string); ok {
			schema["type"] = []string{typ, "null"}
		}
	}
	return schema
}

func isNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}
