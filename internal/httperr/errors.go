// Package httperr defines the failure taxonomy recognized by the
// pipeline and the stacked classification layers that translate each
// category into an HTTP response.
package httperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a known domain-error category.
type Kind string

// The closed set of domain-error kinds. Classification is by tag:
// anything outside this set is not owned by the domain layer and is
// re-raised.
const (
	// KindRequestDataInvalid marks malformed or unacceptable request
	// payloads.
	KindRequestDataInvalid Kind = "request-data-invalid"

	// KindUserDataInvalid marks invalid user-supplied entity data.
	KindUserDataInvalid Kind = "user-data-invalid"

	// KindServiceStatusVersionNotFound marks a lookup of a service
	// status version that does not exist.
	KindServiceStatusVersionNotFound Kind = "service-status-version-not-found"
)

// Known reports whether k belongs to the closed kind set.
func (k Kind) Known() bool {
	switch k {
	case KindRequestDataInvalid,
		KindUserDataInvalid,
		KindServiceStatusVersionNotFound:
		return true
	}
	return false
}

// DomainError is an expected, user-triggerable failure tagged with one
// of the known kinds.
type DomainError struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError creates a domain error with the given kind and
// message.
func NewDomainError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapDomainError creates a domain error wrapping an underlying cause.
func WrapDomainError(kind Kind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}

// AsDomainError extracts a domain error with a known kind from err.
// A DomainError carrying an unknown kind is not claimed; it falls
// through to an outer layer like any other failure.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) && de.Kind.Known() {
		return de, true
	}
	return nil, false
}

// SchemaSignature is the message fragment that marks a failure as a
// schema violation. The schema layer classifies by this signature, not
// by type.
const SchemaSignature = "does not match schema"

// SchemaError is a contract violation: a value did not match its
// declared schema. Its message carries SchemaSignature so the schema
// layer recognizes it, and Value/Type describe the offending data for
// the composed diagnostic.
type SchemaError struct {
	Message string
	Value   any
	Type    string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return e.Message
}

// NewSchemaError creates a schema error for the offending value.
func NewSchemaError(value any, valueType string) *SchemaError {
	return &SchemaError{
		Message: fmt.Sprintf("value of type %s %s", valueType, SchemaSignature),
		Value:   value,
		Type:    valueType,
	}
}

// IsSchemaViolation reports whether err carries the schema-violation
// signature in its message.
func IsSchemaViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), SchemaSignature)
}

// composeSchemaMessage renders the diagnostic for a schema violation,
// appending the offending value and type when the failure carries
// them.
func composeSchemaMessage(err error) string {
	var se *SchemaError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s, value: %v, type: %s", se.Message, se.Value, se.Type)
	}
	return err.Error()
}
