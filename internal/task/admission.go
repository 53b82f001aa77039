package task

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// AdmissionController bounds the number of pipeline executions in flight.
// It is a throttle, not a queue: TryAcquire never blocks and rejected work
// is dropped.
type AdmissionController struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewAdmissionController creates a controller with capacity slots. A
// capacity below one is raised to one.
func NewAdmissionController(capacity int, logger *slog.Logger) *AdmissionController {
	if capacity <= 0 {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("invalid admission capacity specified, using default",
			"specified_capacity", capacity,
			"default_capacity", 1)
		capacity = 1
	}
	return &AdmissionController{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// TryAcquire grants a slot if one is free. Every granted slot must be
// returned with exactly one call to Release.
func (a *AdmissionController) TryAcquire() bool {
	if !a.sem.TryAcquire(1) {
		return false
	}
	a.inFlight.Add(1)
	return true
}

// Release returns a slot. Releasing more slots than were granted panics.
func (a *AdmissionController) Release() {
	a.inFlight.Add(-1)
	a.sem.Release(1)
}

// InFlight returns the number of slots currently granted.
func (a *AdmissionController) InFlight() int {
	return int(a.inFlight.Load())
}

// Capacity returns the fixed number of slots.
func (a *AdmissionController) Capacity() int {
	return a.capacity
}
