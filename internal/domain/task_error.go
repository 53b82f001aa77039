package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a task failed.
type ErrorKind string

// Possible error kinds stored on failed tasks
const (
	ErrorKindInvalidInput  ErrorKind = "invalid_input"
	ErrorKindComputation   ErrorKind = "computation_error"
	ErrorKindInternalFault ErrorKind = "internal_fault"
)

// TaskError is the structured failure reason stored on a failed task.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap maps the kind back onto its sentinel so callers can use errors.Is.
func (e *TaskError) Unwrap() error {
	switch e.Kind {
	case ErrorKindInvalidInput:
		return ErrInvalidInput
	case ErrorKindComputation:
		return ErrComputation
	default:
		return ErrInternalFault
	}
}

// NewTaskError builds a TaskError from an arbitrary error. The kind is
// derived from the sentinel the error wraps; anything unrecognised is an
// internal fault.
func NewTaskError(err error) *TaskError {
	if err == nil {
		return &TaskError{Kind: ErrorKindInternalFault, Message: "unknown error"}
	}

	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		cp := *taskErr
		return &cp
	}

	kind := ErrorKindInternalFault
	switch {
	case errors.Is(err, ErrInvalidInput):
		kind = ErrorKindInvalidInput
	case errors.Is(err, ErrComputation):
		kind = ErrorKindComputation
	}

	return &TaskError{Kind: kind, Message: err.Error()}
}
