package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized covers unknown/expired tokens and unauthenticated
// sessions; callers surface it before any write happens.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned for lookups of records the caller does not
// own as well as genuinely missing ones, so existence never leaks.
var ErrNotFound = errors.New("not found")

// ValidationError marks a malformed item inside a sync batch. The
// service fails fast on the first invalid item; items processed before
// it stay committed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
