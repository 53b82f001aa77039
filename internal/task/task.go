package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/domain"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusAccepted  Status = "accepted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a point-in-time snapshot of one unit of asynchronous work.
// Result is set only when Status is completed, Error only when it is failed.
type Task struct {
	ID        uuid.UUID
	Status    Status
	Message   string
	Result    []domain.StatisticRecord
	Error     *domain.TaskError
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Job type constants
const (
	// JobTypeZonalStats computes zonal statistics for a feature collection
	JobTypeZonalStats = "zonal_stats"
)

// Job is the executable side of a task, run once by a Runner worker.
type Job interface {
	// ID returns the id of the task this job belongs to
	ID() uuid.UUID

	// Type returns the job type identifier
	Type() string

	// Execute runs the job and returns its statistics
	Execute(ctx context.Context) ([]domain.StatisticRecord, error)
}

// JobQueueReader provides read-only access to the job channel
// allowing workers to consume jobs without the ability to enqueue
type JobQueueReader interface {
	// GetChannel returns a read-only channel for consuming jobs
	GetChannel() <-chan Job
}

// JobQueueWriter provides write access to the job queue
// allowing the dispatcher to enqueue jobs for processing
type JobQueueWriter interface {
	// Enqueue adds a job to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(job Job) error

	// Close closes the job queue, preventing further submission
	Close()
}
