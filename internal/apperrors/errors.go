// Package apperrors provides sentinel and custom error types for the triage pipeline.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound represents a "not found" error.
// Use when a requested cluster or feedback item doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when an administrative action or configuration value is rejected.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrIntelligenceUnavailable marks a classification or embedding call that failed or timed out.
// Callers recover from it locally; it never aborts a batch.
var ErrIntelligenceUnavailable = errors.New("intelligence service unavailable")

// Stage names the part of a triage pass that failed.
type Stage string

const (
	StageClassification Stage = "classification"
	StageEmbedding      Stage = "embedding"
	StageLoadClusters   Stage = "load_clusters"
	StageLoadFeedback   Stage = "load_feedback"
	StageStoreWrite     Stage = "store_write"
	StageDelivery       Stage = "delivery"
)

// StageError reports which stage of a triage pass failed so operators can tell an aborted
// digest apart from a delivered-but-degraded one.
type StageError struct {
	Stage Stage
	Err   error
}

// NewStageError wraps err with the stage it occurred in.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err's chain, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}

	return "", false
}
