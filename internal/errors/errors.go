// Package errors wraps the standard errors package and adds the validation
// error kind used by rule and payload checks.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given text.
func New(text string) error { return errors.New(text) }

// Newf returns an error with formatted text. %w wraps as usual.
func Newf(format string, args ...any) error { return fmt.Errorf(format, args...) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join wraps the given errors into one.
func Join(errs ...error) error { return errors.Join(errs...) }

// Unwrap returns the result of calling Unwrap on err, if any.
func Unwrap(err error) error { return errors.Unwrap(err) }

// ValidationError describes a rejected field in user-supplied input
// (rule definitions, ingest payloads). Validation failures are reported
// before evaluation; they never reach the correlation engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for the given field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
