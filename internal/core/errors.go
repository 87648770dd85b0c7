package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means the requested alias already belongs to another link.
	ErrConflict = errors.New("alias already in use")
	// ErrNotFound means the alias, topic or owner has no links.
	ErrNotFound = errors.New("not found")
	// ErrExhaustedRetries means random identifier generation kept colliding.
	ErrExhaustedRetries = errors.New("max retries exceeded: unable to allocate unique identifier")
)

// ValidationError reports a user-correctable problem with one input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
