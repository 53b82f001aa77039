package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrOverloaded is returned when no admission slot is free. No task is
	// created for a submission rejected with this error.
	ErrOverloaded = errors.New("service overloaded")

	// ErrInvalidInput is returned when a submission is empty or is not a
	// usable feature collection.
	ErrInvalidInput = errors.New("invalid input")

	// ErrComputation is returned when a pipeline stage fails on geometry,
	// raster, or I/O problems.
	ErrComputation = errors.New("computation failed")

	// ErrInternalFault is returned for unexpected faults during execution,
	// including recovered panics.
	ErrInternalFault = errors.New("internal fault")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)
