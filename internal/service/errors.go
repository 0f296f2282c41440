package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyCompleted = errors.New("task already completed today by another member")
	ErrNotFound         = errors.New("not found")
	ErrStateConflict    = errors.New("state conflict")

	ErrDateNotToday       = fmt.Errorf("%w: completions can only be toggled for today", ErrValidation)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrStateConflict)
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports a bad input field. It matches ErrValidation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}
