package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/events"
)

// Manager is the single owner of task state. Every transition happens in
// one critical section, so readers never observe a half-applied change and
// a task's status never regresses.
type Manager struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*Task
	emitter events.EventEmitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates an empty Manager. Transitions are reported to emitter.
func NewManager(emitter events.EventEmitter, logger *slog.Logger) *Manager {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tasks:   make(map[uuid.UUID]*Task),
		emitter: emitter,
		logger:  logger.With("component", "task_manager"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new accepted task and returns its id.
func (m *Manager) Create() uuid.UUID {
	m.mu.Lock()
	id := uuid.New()
	for m.tasks[id] != nil {
		id = uuid.New()
	}
	now := m.now()
	m.tasks[id] = &Task{ID: id, Status: StatusAccepted, CreatedAt: now, UpdatedAt: now}
	m.mu.Unlock()

	ev := events.NewTaskEvent(events.TaskCreated, id)
	ev.Status = string(StatusAccepted)
	m.emit(ev)
	return id
}

// Note replaces the message of a task that is not yet terminal, leaving
// its status unchanged.
func (m *Manager) Note(id uuid.UUID, message string) error {
	return m.transition(id, events.TaskStage, func(t *Task) error {
		if t.Status.Terminal() {
			return fmt.Errorf("%w: note on %s task", ErrTaskTerminal, t.Status)
		}
		t.Message = message
		return nil
	})
}

// SetRunning moves an accepted or running task to running with message.
func (m *Manager) SetRunning(id uuid.UUID, message string) error {
	return m.transition(id, events.TaskStage, func(t *Task) error {
		if t.Status.Terminal() {
			return fmt.Errorf("%w: cannot run %s task", ErrTaskTerminal, t.Status)
		}
		t.Status = StatusRunning
		t.Message = message
		return nil
	})
}

// Complete stores result on a running task. A task must have been running
// to complete; calling Complete on a terminal task is rejected and logged.
func (m *Manager) Complete(id uuid.UUID, result []domain.StatisticRecord) error {
	return m.transition(id, events.TaskCompleted, func(t *Task) error {
		switch t.Status {
		case StatusRunning:
		case StatusAccepted:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusCompleted)
		default:
			return fmt.Errorf("%w: complete on %s task", ErrTaskTerminal, t.Status)
		}
		t.Status = StatusCompleted
		t.Message = "zonal statistics completed"
		t.Result = append([]domain.StatisticRecord{}, result...)
		return nil
	})
}

// Fail stores taskErr on an accepted or running task. A nil taskErr is
// recorded as an internal fault.
func (m *Manager) Fail(id uuid.UUID, taskErr *domain.TaskError) error {
	if taskErr == nil {
		taskErr = &domain.TaskError{Kind: domain.ErrorKindInternalFault, Message: "unknown error"}
	}
	return m.transition(id, events.TaskFailed, func(t *Task) error {
		if t.Status.Terminal() {
			return fmt.Errorf("%w: fail on %s task", ErrTaskTerminal, t.Status)
		}
		cp := *taskErr
		t.Status = StatusFailed
		t.Message = taskErr.Message
		t.Error = &cp
		return nil
	})
}

// Get returns a snapshot of the task. The snapshot shares no memory with
// the manager's record.
func (m *Manager) Get(id uuid.UUID) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return snapshot(t), nil
}

// Counts returns the number of tasks in each status.
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[Status]int{
		StatusAccepted: 0, StatusRunning: 0, StatusCompleted: 0, StatusFailed: 0,
	}
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts
}

// transition applies fn to the task under the write lock and emits an event
// describing the result once the lock is released.
func (m *Manager) transition(id uuid.UUID, eventType events.EventType, fn func(t *Task) error) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if err := fn(t); err != nil {
		status := t.Status
		m.mu.Unlock()
		m.logger.Error("rejected task transition",
			"task_id", id,
			"status", status,
			"event_type", eventType,
			"error", err)
		return err
	}
	t.UpdatedAt = m.now()

	ev := events.NewTaskEvent(eventType, id)
	ev.Status = string(t.Status)
	ev.Message = t.Message
	ev.Elapsed = t.UpdatedAt.Sub(t.CreatedAt)
	if t.Error != nil {
		ev.ErrorKind = string(t.Error.Kind)
	}
	ev.Records = len(t.Result)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

func (m *Manager) emit(ev *events.TaskEvent) {
	if err := m.emitter.EmitEvent(context.Background(), ev); err != nil {
		m.logger.Warn("failed to emit task event",
			"event_type", ev.Type,
			"task_id", ev.TaskID,
			"error", err)
	}
}

func snapshot(t *Task) Task {
	cp := *t
	if t.Result != nil {
		cp.Result = append([]domain.StatisticRecord(nil), t.Result...)
	}
	if t.Error != nil {
		e := *t.Error
		cp.Error = &e
	}
	return cp
}
