package service

import (
	"errors"
	"fmt"
)

// ValidationError reports a rejected input with a reason the caller can act on
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Shared service errors
var (
	ErrUnauthorized = errors.New("unauthorized")
)
