package jsonapi

import (
	"fmt"
	"reflect"
)

// Registry holds exactly one ResourceDescriptor per registered Go type.
//
// A registry is populated once at startup and then sealed. Registration is not
// safe for concurrent use; after Seal the registry is read-only and may be shared
// by any number of goroutines.
type Registry struct {
	byType map[reflect.Type]*ResourceDescriptor
	byName map[string]*ResourceDescriptor
	order  []*ResourceDescriptor
	shapes *Shapes
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]*ResourceDescriptor),
		byName: make(map[string]*ResourceDescriptor),
	}
	r.shapes = newShapes(r)
	return r
}

// Register builds and stores the descriptor of a declaration. Registering a type
// that is already known returns the existing descriptor unchanged.
func (r *Registry) Register(decl Declaration) (*ResourceDescriptor, error) {
	goType := decl.resourceType()
	if existing, ok := r.byType[goType]; ok {
		if existing.typeName != decl.resourceName() {
			return nil, configError(decl.resourceName(), "",
				"%s is already registered as %q", goType, existing.typeName)
		}
		return existing, nil
	}
	if r.sealed {
		return nil, fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, decl.resourceName())
	}
	if other, ok := r.byName[decl.resourceName()]; ok {
		return nil, configError(decl.resourceName(), "",
			"type name is already used by %s", other.goType)
	}

	desc, err := decl.describe(r)
	if err != nil {
		return nil, err
	}
	r.byType[goType] = desc
	r.byName[desc.typeName] = desc
	r.order = append(r.order, desc)
	return desc, nil
}

// MustRegister registers every declaration and panics on the first error. It is
// meant for startup code where a bad declaration is a programming error.
func (r *Registry) MustRegister(decls ...Declaration) {
	for _, decl := range decls {
		if _, err := r.Register(decl); err != nil {
			panic(err)
		}
	}
}

// Seal ends the registration phase. It checks that every relationship points to
// a registered resource and builds the shape of every type.
func (r *Registry) Seal() error {
	if r.sealed {
		return nil
	}
	for _, desc := range r.order {
		for _, rel := range desc.relationships {
			if _, ok := r.byType[rel.ResourceType]; !ok {
				return fmt.Errorf("%w: %s (relationship %q of %q)",
					ErrResourceNotRegistered, rel.ResourceType, rel.Name, desc.typeName)
			}
		}
	}
	for _, desc := range r.order {
		if _, err := r.shapes.Document(desc.typeName); err != nil {
			return err
		}
	}
	r.sealed = true
	return nil
}

// Sealed reports whether Seal completed.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup returns the descriptor for the dynamic type of entity.
func (r *Registry) Lookup(entity any) (*ResourceDescriptor, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrResourceNotRegistered)
	}
	return r.LookupType(reflect.TypeOf(entity))
}

// LookupType returns the descriptor for t. Pointers are dereferenced.
func (r *Registry) LookupType(t reflect.Type) (*ResourceDescriptor, error) {
	desc, ok := r.byType[baseType(t)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotRegistered, t)
	}
	return desc, nil
}

// Resource returns the descriptor registered under a JSON:API type name.
func (r *Registry) Resource(typeName string) (*ResourceDescriptor, error) {
	desc, ok := r.byName[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrResourceNotRegistered, typeName)
	}
	return desc, nil
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []*ResourceDescriptor {
	out := make([]*ResourceDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Shapes returns the document model builder of this registry.
func (r *Registry) Shapes() *Shapes {
	return r.shapes
}

// isResourceCandidate reports whether a field of type t, declared on self,
// refers to a resource.
func (r *Registry) isResourceCandidate(t, self reflect.Type) bool {
	base := relatedBase(t)
	if base == self {
		return true
	}
	_, ok := r.byType[base]
	return ok
}
