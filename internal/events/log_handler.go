package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
)

// LogHandler writes every event as one structured log line.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler that falls back to logger when the
// context carries none.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "task_events")}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	log := logger.FromContextOrDefault(ctx, h.logger)

	attrs := []any{
		slog.String("event_type", string(event.Type)),
		slog.String("event_id", event.ID.String()),
	}
	if event.TaskID != uuid.Nil {
		attrs = append(attrs, slog.String("task_id", event.TaskID.String()))
	}
	if event.Status != "" {
		attrs = append(attrs, slog.String("status", event.Status))
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("message", event.Message))
	}

	switch event.Type {
	case TaskFailed:
		attrs = append(attrs,
			slog.String("error_kind", event.ErrorKind),
			slog.Duration("elapsed", event.Elapsed))
		log.Warn("task failed", attrs...)
	case TaskCompleted:
		attrs = append(attrs,
			slog.Int("records", event.Records),
			slog.Duration("elapsed", event.Elapsed))
		log.Info("task completed", attrs...)
	case TaskRejected:
		log.Warn("submission rejected", attrs...)
	case TaskStage:
		log.Debug("task stage", attrs...)
	default:
		log.Info("task event", attrs...)
	}
	return nil
}
