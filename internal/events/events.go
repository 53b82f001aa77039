package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle change.
type EventType string

// Event types emitted by the task engine
const (
	TaskCreated   EventType = "task.created"
	TaskStage     EventType = "task.stage"
	TaskCompleted EventType = "task.completed"
	TaskFailed    EventType = "task.failed"
	TaskRejected  EventType = "task.rejected"
)

// TaskEvent describes one lifecycle change of a task. Rejected submissions
// have no task, so their TaskID is uuid.Nil.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID     uuid.UUID `json:"id"`
	Type   EventType `json:"type"`
	TaskID uuid.UUID `json:"task_id"`

	// Status and Message mirror the task after the change
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// ErrorKind is set on task.failed
	ErrorKind string `json:"error_kind,omitempty"`

	// Records is the number of statistic records on task.completed
	Records int `json:"records,omitempty"`

	// Elapsed is the time since the task was created
	Elapsed time.Duration `json:"elapsed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a TaskEvent of the given type for taskID.
func NewTaskEvent(eventType EventType, taskID uuid.UUID) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task engine to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a plain function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
