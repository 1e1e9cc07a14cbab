package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for entity lookups.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrEntityNotFound = errors.New("unknown entity")
)

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ConflictError reports a uniqueness pre-condition violation, carrying the
// entity display name for the client-facing message.
type ConflictError struct {
	Entity string
	Field  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with this %s already exists", e.Entity, e.Field)
}

// ValidationError reports a malformed or missing required input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrMissingField returns a ValidationError for an absent required field.
func ErrMissingField(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// AsValidation unwraps err into a *ValidationError if possible.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)

	return ve, ok
}

// AsConflict unwraps err into a *ConflictError if possible.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)

	return ce, ok
}
