package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/domain"
)

// MockJob is a simple implementation of the Job interface for testing
type MockJob struct {
	JobID     uuid.UUID
	JobType   string
	ExecuteFn func(ctx context.Context) ([]domain.StatisticRecord, error)
}

// NewMockJob creates a MockJob that succeeds with no records
func NewMockJob(id uuid.UUID) *MockJob {
	return &MockJob{
		JobID:   id,
		JobType: "mock_job",
		ExecuteFn: func(ctx context.Context) ([]domain.StatisticRecord, error) {
			return nil, nil
		},
	}
}

func (j *MockJob) ID() uuid.UUID { return j.JobID }
func (j *MockJob) Type() string { return j.JobType }
func (j *MockJob) Execute(ctx context.Context) ([]domain.StatisticRecord, error) {
	return j.ExecuteFn(ctx)
}

// countingReleaser counts Release calls.
type countingReleaser struct {
	mu    sync.Mutex
	count int
}

func (c *countingReleaser) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingReleaser) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
