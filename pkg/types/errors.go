package types

import (
	"errors"
	"fmt"
)

// Record store errors.
var (
	ErrReferenceNotFound = errors.New("reference not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInvalidData       = errors.New("invalid entity data")
	ErrUnknownKind       = errors.New("unknown entity kind")
	ErrWrongRole         = errors.New("operation not supported for entity kind")
	ErrStoreClosed       = errors.New("store is closed")
	ErrReadOnly          = errors.New("store is read-only")
)

// Schema and persistence errors.
var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrInvalidSchema  = errors.New("invalid schema")
	ErrNoDocument     = errors.New("document does not exist")
)

// Reasons carried by ReferenceError.
const (
	ReasonMissing  = "does not exist"
	ReasonNotFound = "not found"
)

// ReferenceError reports an identifier or key that does not resolve in the
// collection it names. Subject is the human label of the reference
// ("Professor ID", "Course"); the message reads "<Subject> <Reason>".
// errors.Is(err, ErrReferenceNotFound) holds for every ReferenceError.
type ReferenceError struct {
	Kind    string // collection that was searched
	Subject string
	Key     any
	Reason  string
}

func (e *ReferenceError) Error() string {
	return e.Subject + " " + e.Reason
}

func (e *ReferenceError) Unwrap() error { return ErrReferenceNotFound }

// FieldError reports an attribute value that cannot be coerced to the
// declared field type. It wraps ErrInvalidData.
type FieldError struct {
	Kind  string
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: invalid value %v: %v", e.Kind, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s.%s: invalid value %v", e.Kind, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return ErrInvalidData }
