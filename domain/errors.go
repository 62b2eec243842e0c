package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by the generic repository when no document matches.
var ErrNotFound = errors.New("document not found")

// ErrUserNotFound is returned by user-specific lookups when no document matches.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicate is returned when a unique index rejects a write. Racing
// creations surface it; callers on the reconciliation path treat it as a
// benign duplicate rather than a failure.
var ErrDuplicate = errors.New("duplicate document")

// ValidationError marks a malformed payload the sender cannot fix by
// retrying against different local state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
