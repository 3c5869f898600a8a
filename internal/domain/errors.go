package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks at the boundaries.
var (
	ErrValidation  = errors.New("validation error")
	ErrExtraction  = errors.New("extraction error")
	ErrPersistence = errors.New("persistence error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExtractionError reports an oracle failure or unusable oracle output.
type ExtractionError struct {
	Kind    DocumentKind
	Timeout bool
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: failed", e.Kind)
	}
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// PersistenceError reports a repository failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a request that contradicts current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewNotFound builds a NotFoundError.
func NewNotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewConflict builds a ConflictError with a formatted message.
func NewConflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
