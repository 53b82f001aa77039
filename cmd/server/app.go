package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/carbonstats/internal/config"
	"github.com/phrazzld/carbonstats/internal/events"
	"github.com/phrazzld/carbonstats/internal/metrics"
	"github.com/phrazzld/carbonstats/internal/pipeline"
	"github.com/phrazzld/carbonstats/internal/service"
	"github.com/phrazzld/carbonstats/internal/task"
	"github.com/phrazzld/carbonstats/internal/zonal"
)

// Dataset is the opened raster shared by every task.
type Dataset interface {
	zonal.Source
	io.Closer
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	dataset Dataset

	// Event system
	eventEmitter *events.InMemoryEventEmitter
	metrics      *metrics.Collector

	// Task engine
	tasks        *task.Manager
	admission    *task.AdmissionController
	executor     *pipeline.Executor
	taskRunner   *task.Runner
	zonalService service.ZonalStatsService
}

// newApplication wires the task engine around an already loaded dataset and
// starts the runner. Call cleanup to stop it.
func newApplication(cfg *config.Config, logger *slog.Logger, dataset Dataset) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		dataset: dataset,
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLogHandler(logger))

	app.tasks = task.NewManager(app.eventEmitter, logger)
	app.admission = task.NewAdmissionController(cfg.Task.MaxConcurrent, logger)

	if cfg.Metrics.Enabled {
		app.metrics = metrics.NewCollector(app.admission, metrics.TaskCounterFunc(app.statusCounts))
		app.eventEmitter.RegisterHandler(app.metrics)
	}

	var err error
	app.executor, err = pipeline.NewExecutor(dataset, cfg.Task.WorkDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline executor: %w", err)
	}

	app.taskRunner = task.NewRunner(
		app.tasks,
		app.admission,
		task.RunnerConfigFor(app.admission.Capacity()),
		logger,
	)

	jobFactory := task.NewZonalStatsJobFactory(app.executor, app.tasks, logger)

	app.zonalService, err = service.NewZonalStatsService(
		app.tasks,
		app.admission,
		app.taskRunner,
		jobFactory,
		app.eventEmitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zonal stats service: %w", err)
	}

	app.taskRunner.Start()

	logger.Info("application initialized successfully",
		"max_concurrent", app.admission.Capacity(),
		"work_dir", cfg.Task.WorkDir,
		"metrics_enabled", cfg.Metrics.Enabled)
	return app, nil
}

func (app *application) statusCounts() map[string]int {
	counts := app.tasks.Counts()
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the runner, which waits for every admitted task to reach a
// terminal state, then closes the dataset.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.dataset != nil {
		if err := app.dataset.Close(); err != nil {
			app.logger.Error("error closing dataset", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
