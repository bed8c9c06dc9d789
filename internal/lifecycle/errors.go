package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is a single field-level rule violation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rule violation found in one payload.
// Validation never fails fast; all violations are gathered and returned
// together.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a violation
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any violation was collected
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// IsValidationError returns true if the error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CascadeError reports a failed cascade step against a dependent model.
// It propagates; the engine never rolls back the steps that succeeded.
type CascadeError struct {
	Model    string
	Relation string
	Err      error
}

// Error implements the error interface
func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade delete failed for %s via %s: %v", e.Model, e.Relation, e.Err)
}

// Unwrap returns the underlying error
func (e *CascadeError) Unwrap() error {
	return e.Err
}
