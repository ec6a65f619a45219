package jsonapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResourceNotRegistered is returned when a type reachable from a
	// serialization root has no descriptor.
	ErrResourceNotRegistered = errors.New("jsonapi: resource not registered")

	// ErrMissingIdentifier is returned when an id accessor yields an empty value,
	// which usually means the entity was never persisted.
	ErrMissingIdentifier = errors.New("jsonapi: missing resource identifier")

	// ErrMissingRelationship is returned when a required to-one relationship is nil.
	ErrMissingRelationship = errors.New("jsonapi: missing required relationship")

	// ErrConfiguration is returned when a resource declaration is inconsistent.
	ErrConfiguration = errors.New("jsonapi: invalid resource configuration")

	// ErrRegistrySealed is returned when a new type is registered after Seal.
	ErrRegistrySealed = errors.New("jsonapi: registry is sealed")

	// ErrInvalidDocument is returned when an inbound document does not match the
	// shape of its resource type.
	ErrInvalidDocument = errors.New("jsonapi: invalid document")
)

// ConfigurationError describes a declaration problem found at registration time.
type ConfigurationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("jsonapi: resource %q: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("jsonapi: resource %q field %q: %s", e.Type, e.Field, e.Reason)
}

// Is reports ErrConfiguration as the sentinel of every ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// SerializationError records where in the entity graph serialization failed.
type SerializationError struct {
	Path []string
	Err  error
}

func (e *SerializationError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (at %s)", e.Err.Error(), strings.Join(e.Path, "."))
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// DocumentError points at the member of an inbound document that failed
// validation. Pointer is a JSON pointer (RFC 6901) into the request body, or
// the name of the offending query parameter such as "include".
type DocumentError struct {
	Pointer string
	Detail  string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("jsonapi: invalid document at %s: %s", e.Pointer, e.Detail)
}

// Is reports ErrInvalidDocument as the sentinel of every DocumentError.
func (e *DocumentError) Is(target error) bool {
	return target == ErrInvalidDocument
}

func configError(typeName, field, format string, args ...any) error {
	return &ConfigurationError{Type: typeName, Field: field, Reason: fmt.Sprintf(format, args...)}
}
