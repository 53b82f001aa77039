package task

import "errors"

// Errors returned by the Manager and the job queue
var (
	// ErrTaskNotFound is returned for ids the manager never issued.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a transition does not follow
	// accepted -> running -> completed|failed.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrTaskTerminal is returned when a completed or failed task is
	// transitioned again. The stored result or error is left untouched.
	ErrTaskTerminal = errors.New("task already terminal")

	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)
