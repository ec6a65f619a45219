package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodedRelationship is the linkage of one relationship of an inbound resource.
type DecodedRelationship struct {
	Null        bool
	List        bool
	Identifiers []ResourceIdentifier
}

// DecodedResource is an inbound resource object validated against its shape.
type DecodedResource struct {
	ID            string
	Type          string
	Attributes    map[string]json.RawMessage
	Relationships map[string]DecodedRelationship
}

// HasAttribute reports whether the attribute was sent.
func (d *DecodedResource) HasAttribute(name string) bool {
	_, ok := d.Attributes[name]
	return ok
}

// Attribute decodes an attribute into dst. It returns false when the attribute
// was not sent.
func (d *DecodedResource) Attribute(name string, dst any) (bool, error) {
	raw, ok := d.Attributes[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, &DocumentError{
			Pointer: "/data/attributes/" + name,
			Detail:  err.Error(),
		}
	}
	return true, nil
}

// Identifiers returns the identifiers sent for a relationship.
func (d *DecodedResource) Identifiers(name string) []ResourceIdentifier {
	return d.Relationships[name].Identifiers
}

// Identifier returns the identifier of a to-one relationship.
func (d *DecodedResource) Identifier(name string) (ResourceIdentifier, bool) {
	rel, ok := d.Relationships[name]
	if !ok || rel.Null || rel.List || len(rel.Identifiers) == 0 {
		return ResourceIdentifier{}, false
	}
	return rel.Identifiers[0], true
}

type wireResource struct {
	ID            *string                    `json:"id"`
	Type          string                     `json:"type"`
	Attributes    map[string]json.RawMessage `json:"attributes"`
	Relationships map[string]json.RawMessage `json:"relationships"`
}

// Decode parses a document whose primary data is a single resource of typeName.
func (s *Shapes) Decode(typeName string, body []byte) (*DecodedResource, error) {
	shape, err := s.Resource(typeName)
	if err != nil {
		return nil, err
	}
	data, err := documentData(body)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, []byte("[")) {
		return nil, &DocumentError{Pointer: "/data", Detail: "expected a single resource object"}
	}
	return decodeResource(shape, data, "/data")
}

// DecodeMany parses a document whose primary data is a list of resources.
func (s *Shapes) DecodeMany(typeName string, body []byte) ([]*DecodedResource, error) {
	shape, err := s.Resource(typeName)
	if err != nil {
		return nil, err
	}
	data, err := documentData(body)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &DocumentError{Pointer: "/data", Detail: "expected an array of resource objects"}
	}
	out := make([]*DecodedResource, 0, len(items))
	for i, item := range items {
		res, err := decodeResource(shape, item, fmt.Sprintf("/data/%d", i))
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func documentData(body []byte) (json.RawMessage, error) {
	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DocumentError{Pointer: "", Detail: "body is not a JSON object: " + err.Error()}
	}
	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, &DocumentError{Pointer: "/data", Detail: "primary data is missing"}
	}
	return data, nil
}

func decodeResource(shape *ResourceShape, raw json.RawMessage, pointer string) (*DecodedResource, error) {
	var wire wireResource
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &DocumentError{Pointer: pointer, Detail: "expected a resource object"}
	}
	if wire.Type != shape.TypeName {
		return nil, &DocumentError{
			Pointer: pointer + "/type",
			Detail:  fmt.Sprintf("expected type %q, got %q", shape.TypeName, wire.Type),
		}
	}

	res := &DecodedResource{
		Type:          wire.Type,
		Attributes:    make(map[string]json.RawMessage, len(wire.Attributes)),
		Relationships: make(map[string]DecodedRelationship, len(wire.Relationships)),
	}
	if wire.ID != nil {
		res.ID = *wire.ID
	}

	for name, value := range wire.Attributes {
		if _, ok := shape.Attribute(name); !ok {
			return nil, &DocumentError{
				Pointer: pointer + "/attributes/" + name,
				Detail:  fmt.Sprintf("%q is not an attribute of %q", name, shape.TypeName),
			}
		}
		res.Attributes[name] = value
	}

	for name, value := range wire.Relationships {
		relPointer := pointer + "/relationships/" + name
		relShape, ok := shape.Relationship(name)
		if !ok {
			return nil, &DocumentError{
				Pointer: relPointer,
				Detail:  fmt.Sprintf("%q is not a relationship of %q", name, shape.TypeName),
			}
		}
		rel, err := decodeRelationship(relShape, value, relPointer)
		if err != nil {
			return nil, err
		}
		res.Relationships[name] = rel
	}
	return res, nil
}

func decodeRelationship(shape RelationshipShape, raw json.RawMessage, pointer string) (DecodedRelationship, error) {
	var wire struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return DecodedRelationship{}, &DocumentError{Pointer: pointer, Detail: "expected a relationship object"}
	}
	data := bytes.TrimSpace(wire.Data)
	pointer += "/data"

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		if !shape.Optional {
			return DecodedRelationship{}, &DocumentError{Pointer: pointer, Detail: "relationship is required"}
		}
		return DecodedRelationship{Null: true, List: shape.List}, nil
	}

	if shape.List {
		var ids []ResourceIdentifier
		if err := json.Unmarshal(data, &ids); err != nil {
			return DecodedRelationship{}, &DocumentError{Pointer: pointer, Detail: "expected an array of resource identifiers"}
		}
		for i, id := range ids {
			if err := checkIdentifier(shape, id, fmt.Sprintf("%s/%d", pointer, i)); err != nil {
				return DecodedRelationship{}, err
			}
		}
		if ids == nil {
			ids = []ResourceIdentifier{}
		}
		return DecodedRelationship{List: true, Identifiers: ids}, nil
	}

	var id ResourceIdentifier
	if bytes.HasPrefix(data, []byte("[")) || json.Unmarshal(data, &id) != nil {
		return DecodedRelationship{}, &DocumentError{Pointer: pointer, Detail: "expected a single resource identifier"}
	}
	if err := checkIdentifier(shape, id, pointer); err != nil {
		return DecodedRelationship{}, err
	}
	return DecodedRelationship{Identifiers: []ResourceIdentifier{id}}, nil
}

func checkIdentifier(shape RelationshipShape, id ResourceIdentifier, pointer string) error {
	if id.Type != shape.Target.TypeName {
		return &DocumentError{
			Pointer: pointer + "/type",
			Detail:  fmt.Sprintf("expected type %q, got %q", shape.Target.TypeName, id.Type),
		}
	}
	if id.ID == "" {
		return &DocumentError{Pointer: pointer + "/id", Detail: "id is required"}
	}
	return nil
}
