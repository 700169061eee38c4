package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ValidationError is a caller-fixable input or transition problem.
// Current and Attempted are set for rejected status transitions.
type ValidationError struct {
	Field     string
	Message   string
	Current   string
	Attempted string
}

func (e ValidationError) Error() string {
	if e.Current != "" || e.Attempted != "" {
		return fmt.Sprintf("cannot change status from %s to %s", e.Current, e.Attempted)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// PermissionError means the caller may not act on the record.
type PermissionError struct {
	Message string
}

func (e PermissionError) Error() string {
	if e.Message == "" {
		return "permission denied"
	}
	return e.Message
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e StoreError) Unwrap() error { return e.Err }

func Invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}
