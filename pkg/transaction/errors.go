package transaction

import (
	"errors"
	"fmt"
)

// Errors returned by store and API operations.
var (
	// ErrNotFound is returned when no live transaction has the requested id
	ErrNotFound = errors.New("transaction: not found")

	// ErrValidation is returned when a field is missing or cannot be coerced
	ErrValidation = errors.New("transaction: validation failed")

	// ErrMalformedBody is returned when a request body is not valid JSON
	ErrMalformedBody = errors.New("transaction: malformed request body")

	// ErrInvalidID is returned when a path id is not an integer
	ErrInvalidID = errors.New("transaction: invalid id")

	// ErrUnknownEndpoint is returned for unsupported path and method combinations
	ErrUnknownEndpoint = errors.New("transaction: unknown endpoint")
)

// ValidationError describes a field-level validation failure.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Reason  string
	missing bool
}

// MissingField returns the error reported when a required field is absent.
func MissingField(field string) error {
	return &ValidationError{Field: field, Reason: "missing required field", missing: true}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction: %s: %s", e.Field, e.Reason)
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Message returns the client-facing description of the failure.
func (e *ValidationError) Message() string {
	if e.missing {
		return "Missing required field: " + e.Field
	}
	return fmt.Sprintf("Invalid data format: %s %s", e.Field, e.Reason)
}

// IsNotFound reports whether err indicates a missing transaction.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a field-level validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ClassifyError returns a short label for err, used in metrics and logs.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrMalformedBody):
		return "malformed_body"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrUnknownEndpoint):
		return "unknown_endpoint"
	default:
		return "internal"
	}
}
