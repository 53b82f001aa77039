package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/phrazzld/carbonstats/internal/platform/sqlite"
	"github.com/phrazzld/carbonstats/internal/redact"
	"github.com/phrazzld/carbonstats/internal/store"
	"github.com/phrazzld/carbonstats/internal/zonal"
)

// Stage messages reported to the task manager before each stage runs
const (
	StageValidating = "validating input"
	StageWriting    = "writing GeoJSON"
	StageConverting = "converting to vector layer"
	StageComputing  = "running zonal statistics"
)

// Reporter receives stage announcements. The task manager implements it.
type Reporter interface {
	// Note updates the message of a task that has not started running.
	Note(id uuid.UUID, message string) error
	// SetRunning moves the task to running with the given message.
	SetRunning(id uuid.UUID, message string) error
}

// StatsFunc computes the statistics of one feature. zonal.Stats has this shape.
type StatsFunc func(src zonal.Source, index int, featureID any, geom orb.Geometry) (domain.StatisticRecord, error)

// Executor runs the pipeline against a shared, read-only raster.
type Executor struct {
	raster  zonal.Source
	workDir string
	stats   StatsFunc
	logger  *slog.Logger
}

// NewExecutor creates an Executor whose task workspaces live under workDir.
// The directory is created if needed.
func NewExecutor(src zonal.Source, workDir string, logger *slog.Logger) (*Executor, error) {
	if src == nil {
		return nil, errors.New("raster source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	return &Executor{
		raster:  src,
		workDir: workDir,
		stats:   zonal.Stats,
		logger:  logger.With(slog.String("component", "pipeline_executor")),
	}, nil
}

// Run executes every stage for taskID and returns one record per feature in
// input order. Errors are always *domain.TaskError with a redacted message.
func (e *Executor) Run(
	ctx context.Context,
	taskID uuid.UUID,
	fc *geojson.FeatureCollection,
	rep Reporter,
) ([]domain.StatisticRecord, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(slog.String("task_id", taskID.String()))
	ctx = logger.WithLogger(ctx, log)

	if err := rep.Note(taskID, StageValidating); err != nil {
		return nil, fail(domain.ErrorKindInternalFault, err)
	}
	if err := Validate(fc); err != nil {
		return nil, fail(domain.ErrorKindInvalidInput, err)
	}

	ws, err := newWorkspace(e.workDir, taskID)
	if err != nil {
		return nil, fail(domain.ErrorKindInternalFault, err)
	}
	defer func() {
		if err := ws.remove(); err != nil {
			log.Error("failed to remove task workspace", slog.String("error", err.Error()))
		}
	}()

	if err := rep.SetRunning(taskID, StageWriting); err != nil {
		return nil, fail(domain.ErrorKindInternalFault, err)
	}
	if err := writeGeoJSON(ws.geoJSONPath(), fc); err != nil {
		return nil, fail(domain.ErrorKindComputation, err)
	}

	if err := rep.SetRunning(taskID, StageConverting); err != nil {
		return nil, fail(domain.ErrorKindInternalFault, err)
	}
	db, err := e.materialize(ctx, ws)
	if err != nil {
		return nil, fail(domain.ErrorKindComputation, err)
	}
	defer func() { _ = db.Close() }()

	if err := rep.SetRunning(taskID, StageComputing); err != nil {
		return nil, fail(domain.ErrorKindInternalFault, err)
	}
	records, err := e.compute(ctx, db)
	if err != nil {
		return nil, fail(domain.ErrorKindComputation, err)
	}

	log.Debug("pipeline finished", slog.Int("records", len(records)))
	return records, nil
}

// materialize re-reads the task's GeoJSON and loads it into a fresh layer
// database in a single transaction.
func (e *Executor) materialize(ctx context.Context, ws *workspace) (*sql.DB, error) {
	fc, err := readGeoJSON(ws.geoJSONPath())
	if err != nil {
		return nil, err
	}

	features := make([]store.LayerFeature, len(fc.Features))
	for i, f := range fc.Features {
		features[i] = store.LayerFeature{
			Index:      i,
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		}
	}

	db, err := sqlite.OpenLayer(ctx, ws.layerPath())
	if err != nil {
		return nil, err
	}

	fs := sqlite.NewFeatureStore(db, e.logger)
	err = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return loadLayer(ctx, fs.WithTx(tx), features)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("materialize layer: %w", err)
	}
	return db, nil
}

// loadLayer inserts features and checks that the layer holds exactly them,
// so the compute stage yields one record per submitted feature.
func loadLayer(ctx context.Context, fs store.FeatureStore, features []store.LayerFeature) error {
	if err := fs.Insert(ctx, features); err != nil {
		return err
	}
	n, err := fs.Count(ctx)
	if err != nil {
		return err
	}
	if n != len(features) {
		return fmt.Errorf("layer holds %d features, submitted %d", n, len(features))
	}
	return nil
}

func (e *Executor) compute(ctx context.Context, db *sql.DB) ([]domain.StatisticRecord, error) {
	features, err := sqlite.NewFeatureStore(db, e.logger).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}

	records := make([]domain.StatisticRecord, 0, len(features))
	for _, f := range features {
		rec, err := e.stats(e.raster, f.Index, f.ID, f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f.Index, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func fail(kind domain.ErrorKind, err error) *domain.TaskError {
	var taskErr *domain.TaskError
	if errors.As(err, &taskErr) {
		return &domain.TaskError{Kind: taskErr.Kind, Message: redact.String(taskErr.Message)}
	}
	return &domain.TaskError{Kind: kind, Message: redact.Error(err)}
}
