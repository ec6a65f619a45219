package jsonapi

import (
	"fmt"
	"reflect"
	"strconv"
)

// accessor reads one member of an entity.
type accessor func(entity any) (any, error)

// Attribute describes one attribute of a resource.
type Attribute struct {
	Name string
	// Type is the declared Go type of the attribute value.
	Type reflect.Type
	get  accessor
}

// Value reads the attribute from entity.
func (a Attribute) Value(entity any) (any, error) {
	return a.get(entity)
}

// Relationship describes one relationship of a resource.
type Relationship struct {
	Name string
	// Type is the declared Go type of the relationship value.
	Type reflect.Type
	// Optional is set when the relationship may be null.
	Optional bool
	// List is set when the relationship holds zero or more resources.
	List bool
	// ResourceType is the struct type describing the related resource.
	ResourceType reflect.Type
	get          accessor
}

// Value reads the related value(s) from entity.
func (r Relationship) Value(entity any) (any, error) {
	return r.get(entity)
}

// ResourceDescriptor is the per type metadata driving serialization and shape
// construction. It is immutable once registered.
type ResourceDescriptor struct {
	typeName      string
	goType        reflect.Type
	id            accessor
	attributes    []Attribute
	relationships []Relationship
}

// TypeName returns the JSON:API type.
func (d *ResourceDescriptor) TypeName() string {
	return d.typeName
}

// GoType returns the struct type the descriptor was registered for.
func (d *ResourceDescriptor) GoType() reflect.Type {
	return d.goType
}

// Attributes returns the attributes in declaration order.
func (d *ResourceDescriptor) Attributes() []Attribute {
	out := make([]Attribute, len(d.attributes))
	copy(out, d.attributes)
	return out
}

// Attribute looks up an attribute by name.
func (d *ResourceDescriptor) Attribute(name string) (Attribute, bool) {
	for _, a := range d.attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Relationships returns the relationships in declaration order.
func (d *ResourceDescriptor) Relationships() []Relationship {
	out := make([]Relationship, len(d.relationships))
	copy(out, d.relationships)
	return out
}

// Relationship looks up a relationship by name.
func (d *ResourceDescriptor) Relationship(name string) (Relationship, bool) {
	for _, r := range d.relationships {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}

// ID returns the stringified id of entity.
func (d *ResourceDescriptor) ID(entity any) (string, error) {
	v, err := d.id(entity)
	if err != nil {
		return "", err
	}
	id, ok := stringifyID(v)
	if !ok {
		return "", fmt.Errorf("%w: %s has id %v", ErrMissingIdentifier, d.typeName, v)
	}
	return id, nil
}

// Identifier returns the {type, id} reference of entity.
func (d *ResourceDescriptor) Identifier(entity any) (ResourceIdentifier, error) {
	id, err := d.ID(entity)
	if err != nil {
		return ResourceIdentifier{}, err
	}
	return ResourceIdentifier{ID: id, Type: d.typeName}, nil
}

func (d *ResourceDescriptor) validate() error {
	if d.typeName == "" {
		return configError(d.goType.String(), "", "type name must not be empty")
	}
	if d.id == nil {
		return configError(d.typeName, "", "no id accessor declared")
	}
	seen := make(map[string]bool, len(d.attributes)+len(d.relationships))
	for _, a := range d.attributes {
		if a.Name == "id" || a.Name == "type" {
			return configError(d.typeName, a.Name, "reserved member name")
		}
		if seen[a.Name] {
			return configError(d.typeName, a.Name, "declared more than once")
		}
		seen[a.Name] = true
	}
	for _, r := range d.relationships {
		if r.Name == "id" || r.Name == "type" {
			return configError(d.typeName, r.Name, "reserved member name")
		}
		if seen[r.Name] {
			return configError(d.typeName, r.Name, "name is used by an attribute and a relationship")
		}
		seen[r.Name] = true
	}
	return nil
}

// stringifyID renders an id value as a string. Zero values (0, "", the nil
// UUID, nil pointers) are rejected.
func stringifyID(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.IsZero() {
		return "", false
	}
	switch x := rv.Interface().(type) {
	case string:
		return x, true
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.String:
		return rv.String(), true
	}
	s := fmt.Sprint(rv.Interface())
	return s, s != ""
}
