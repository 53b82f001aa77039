package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
)

// StateRecorder receives the outcome of every job. *Manager implements it.
type StateRecorder interface {
	Complete(id uuid.UUID, result []domain.StatisticRecord) error
	Fail(id uuid.UUID, taskErr *domain.TaskError) error
}

// SlotReleaser returns an admission slot. *AdmissionController implements it.
type SlotReleaser interface {
	Release()
}

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int
}

// RunnerConfigFor returns a config sized for an admission capacity: one
// worker per slot and room to queue every admitted job, so Submit never
// finds the queue full while slots are honoured.
func RunnerConfigFor(capacity int) RunnerConfig {
	return RunnerConfig{WorkerCount: capacity, QueueSize: capacity}
}

// Runner executes admitted jobs on a fixed pool of workers. Each processed
// job releases its admission slot exactly once and ends in Complete or Fail.
type Runner struct {
	queue      *JobQueue
	states     StateRecorder
	slots      SlotReleaser
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(job Job, err error)
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewRunner creates a new Runner
func NewRunner(states StateRecorder, slots SlotReleaser, config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize < config.WorkerCount {
		config.QueueSize = config.WorkerCount
	}

	return &Runner{
		queue:  NewJobQueue(config.QueueSize, logger),
		states: states,
		slots:  slots,
		config: config,
		logger: logger,
		errHandler: func(job Job, err error) {
			// Default error handler just logs the error
			logger.Error("job execution failed",
				"task_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.errHandler = handler
}

// Submit queues job without blocking. On error the runner has not taken
// ownership of the job: the caller still holds the admission slot and must
// release it.
func (r *Runner) Submit(job Job) error {
	if err := r.queue.Enqueue(job); err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}
	return nil
}

// Start launches the workers. Calling it more than once has no effect.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		for i := 0; i < r.config.WorkerCount; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.logger.Info("task runner started", "worker_count", r.config.WorkerCount)
	})
}

// Stop closes the queue and waits until every queued job has reached a
// terminal state.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()
		r.wg.Wait()
		r.logger.Info("task runner stopped")
	})
}

// worker processes jobs from the queue until it is closed and drained
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)
	for job := range r.queue.GetChannel() {
		r.processJob(job, id)
	}
	r.logger.Debug("job channel closed, stopping worker", "worker_id", id)
}

// processJob handles execution of a single job
func (r *Runner) processJob(job Job, workerID int) {
	log := r.logger.With(
		"task_id", job.ID(),
		"job_type", job.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(context.Background(), log)

	log.Info("processing job")
	start := time.Now()

	records, err := r.execute(ctx, job, log)

	// The slot frees as soon as execution ends, so for a moment InFlight can
	// be lower than the number of tasks still marked running
	r.slots.Release()

	if err != nil {
		taskErr := domain.NewTaskError(err)
		if failErr := r.states.Fail(job.ID(), taskErr); failErr != nil {
			log.Error("failed to record task failure", "error", failErr)
		}
		r.errHandler(job, err)
		return
	}

	if err := r.states.Complete(job.ID(), records); err != nil {
		log.Error("failed to record task result", "error", err)
		faultErr := &domain.TaskError{
			Kind:    domain.ErrorKindInternalFault,
			Message: "result could not be recorded",
		}
		if failErr := r.states.Fail(job.ID(), faultErr); failErr != nil {
			log.Error("failed to record task failure", "error", failErr)
		}
		return
	}

	log.Info("job completed successfully",
		"records", len(records),
		"duration", time.Since(start))
}

// execute runs the job, converting a panic into an internal fault.
func (r *Runner) execute(ctx context.Context, job Job, log *slog.Logger) (records []domain.StatisticRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("job panicked",
				"panic", p,
				"stack", string(debug.Stack()))
			records = nil
			err = &domain.TaskError{
				Kind:    domain.ErrorKindInternalFault,
				Message: "unexpected fault during execution",
			}
		}
	}()

	return job.Execute(ctx)
}
