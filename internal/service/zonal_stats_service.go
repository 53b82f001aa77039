package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/events"
	"github.com/phrazzld/carbonstats/internal/task"
)

// TaskStore is the part of the task manager the dispatcher needs.
type TaskStore interface {
	// Create registers a new accepted task and returns its id
	Create() uuid.UUID

	// Fail moves a task to failed with the given reason
	Fail(id uuid.UUID, taskErr *domain.TaskError) error

	// Get returns a snapshot of the task
	Get(id uuid.UUID) (task.Task, error)
}

// Admission bounds the number of tasks in flight.
type Admission interface {
	// TryAcquire claims a slot without blocking
	TryAcquire() bool

	// Release returns a slot claimed by TryAcquire
	Release()
}

// JobRunner defines the interface for submitting background jobs
type JobRunner interface {
	// Submit adds a job to the processing queue
	Submit(job task.Job) error
}

// JobFactory creates the executable job for an accepted task
type JobFactory interface {
	CreateJob(taskID uuid.UUID, fc *geojson.FeatureCollection) (task.Job, error)
}

// ZonalStatsService dispatches zonal statistics submissions.
type ZonalStatsService interface {
	// Submit admits fc, registers a task for it and queues the work. It
	// returns domain.ErrOverloaded without creating a task when every slot
	// is taken.
	Submit(ctx context.Context, fc *geojson.FeatureCollection) (uuid.UUID, error)

	// GetTask returns a snapshot of the task with the given id
	GetTask(ctx context.Context, id uuid.UUID) (task.Task, error)
}

const serviceName = "zonal_stats"

type zonalStatsServiceImpl struct {
	tasks     TaskStore
	admission Admission
	runner    JobRunner
	factory   JobFactory
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewZonalStatsService creates a new ZonalStatsService.
// It returns an error if any of the required dependencies are nil.
func NewZonalStatsService(
	tasks TaskStore,
	admission Admission,
	runner JobRunner,
	factory JobFactory,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (ZonalStatsService, error) {
	switch {
	case tasks == nil:
		return nil, NewServiceError(serviceName, "create_service", errors.New("tasks cannot be nil"))
	case admission == nil:
		return nil, NewServiceError(serviceName, "create_service", errors.New("admission cannot be nil"))
	case runner == nil:
		return nil, NewServiceError(serviceName, "create_service", errors.New("runner cannot be nil"))
	case factory == nil:
		return nil, NewServiceError(serviceName, "create_service", errors.New("factory cannot be nil"))
	}

	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &zonalStatsServiceImpl{
		tasks:     tasks,
		admission: admission,
		runner:    runner,
		factory:   factory,
		emitter:   emitter,
		logger:    logger.With("component", "zonal_stats_service"),
	}, nil
}

// Submit implements ZonalStatsService.
func (s *zonalStatsServiceImpl) Submit(
	ctx context.Context,
	fc *geojson.FeatureCollection,
) (uuid.UUID, error) {
	if !s.admission.TryAcquire() {
		s.logger.Warn("submission rejected, no free slot")
		ev := events.NewTaskEvent(events.TaskRejected, uuid.Nil)
		ev.Message = domain.ErrOverloaded.Error()
		if err := s.emitter.EmitEvent(ctx, ev); err != nil {
			s.logger.Error("failed to emit rejection event", "error", err)
		}
		return uuid.Nil, domain.ErrOverloaded
	}

	// From here on the slot belongs to this task until the runner or an
	// error path below releases it.
	id := s.tasks.Create()
	log := s.logger.With("task_id", id)

	job, err := s.factory.CreateJob(id, fc)
	if err != nil {
		s.abandon(id, "task could not be scheduled", err)
		return uuid.Nil, NewServiceError(serviceName, "submit", fmt.Errorf("create job: %w", err))
	}

	if err := s.runner.Submit(job); err != nil {
		s.abandon(id, "task could not be queued", err)
		if errors.Is(err, task.ErrQueueClosed) {
			return uuid.Nil, ErrShuttingDown
		}
		return uuid.Nil, NewServiceError(serviceName, "submit", err)
	}

	log.Info("task accepted")
	return id, nil
}

// abandon releases the slot of a task that never reached the runner and
// records it as failed.
func (s *zonalStatsServiceImpl) abandon(id uuid.UUID, message string, cause error) {
	s.admission.Release()
	s.logger.Error(message, "task_id", id, "error", cause)

	taskErr := &domain.TaskError{Kind: domain.ErrorKindInternalFault, Message: message}
	if err := s.tasks.Fail(id, taskErr); err != nil {
		s.logger.Error("failed to record abandoned task", "task_id", id, "error", err)
	}
}

// GetTask implements ZonalStatsService.
func (s *zonalStatsServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := s.tasks.Get(id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return task.Task{}, ErrTaskNotFound
		}
		return task.Task{}, NewServiceError(serviceName, "get_task", err)
	}
	return t, nil
}
