package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/pipeline"
)

// Common errors
var (
	ErrNilExecutor   = errors.New("pipeline executor cannot be nil")
	ErrNilReporter   = errors.New("stage reporter cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
	ErrNilCollection = errors.New("feature collection cannot be nil")
)

// PipelineExecutor runs the zonal statistics pipeline. *pipeline.Executor
// implements it.
type PipelineExecutor interface {
	Run(
		ctx context.Context,
		taskID uuid.UUID,
		fc *geojson.FeatureCollection,
		rep pipeline.Reporter,
	) ([]domain.StatisticRecord, error)
}

// ZonalStatsJob implements the Job interface for computing zonal
// statistics of one submitted feature collection
type ZonalStatsJob struct {
	id       uuid.UUID
	fc       *geojson.FeatureCollection
	executor PipelineExecutor
	reporter pipeline.Reporter
	logger   *slog.Logger
}

// NewZonalStatsJob creates a new zonal statistics job for taskID
func NewZonalStatsJob(
	taskID uuid.UUID,
	fc *geojson.FeatureCollection,
	executor PipelineExecutor,
	reporter pipeline.Reporter,
	logger *slog.Logger,
) (*ZonalStatsJob, error) {
	if taskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}
	if fc == nil {
		return nil, ErrNilCollection
	}
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if reporter == nil {
		return nil, ErrNilReporter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &ZonalStatsJob{
		id:       taskID,
		fc:       fc,
		executor: executor,
		reporter: reporter,
		logger:   logger.With("job_type", JobTypeZonalStats, "task_id", taskID),
	}, nil
}

// ID returns the job's task identifier
func (j *ZonalStatsJob) ID() uuid.UUID {
	return j.id
}

// Type returns the job type identifier
func (j *ZonalStatsJob) Type() string {
	return JobTypeZonalStats
}

// Execute runs the pipeline for the job's feature collection
func (j *ZonalStatsJob) Execute(ctx context.Context) ([]domain.StatisticRecord, error) {
	j.logger.Debug("starting zonal statistics", "features", len(j.fc.Features))
	return j.executor.Run(ctx, j.id, j.fc, j.reporter)
}

// ZonalStatsJobFactory creates ZonalStatsJob instances
type ZonalStatsJobFactory struct {
	executor PipelineExecutor
	reporter pipeline.Reporter
	logger   *slog.Logger
}

// NewZonalStatsJobFactory creates a new factory for ZonalStatsJobs
func NewZonalStatsJobFactory(
	executor PipelineExecutor,
	reporter pipeline.Reporter,
	logger *slog.Logger,
) *ZonalStatsJobFactory {
	return &ZonalStatsJobFactory{
		executor: executor,
		reporter: reporter,
		logger:   logger.With("component", "zonal_stats_job_factory"),
	}
}

// CreateJob creates a new ZonalStatsJob for the task
func (f *ZonalStatsJobFactory) CreateJob(taskID uuid.UUID, fc *geojson.FeatureCollection) (Job, error) {
	job, err := NewZonalStatsJob(taskID, fc, f.executor, f.reporter, f.logger)
	if err != nil {
		return nil, err
	}
	return job, nil
}
