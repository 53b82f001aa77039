package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/events"
	"github.com/phrazzld/carbonstats/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobRunner is a mock implementation of JobRunner
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Submit(job task.Job) error {
	args := m.Called(job)
	return args.Error(0)
}

// MockJobFactory is a mock implementation of JobFactory
type MockJobFactory struct {
	mock.Mock
}

func (m *MockJobFactory) CreateJob(taskID uuid.UUID, fc *geojson.FeatureCollection) (task.Job, error) {
	args := m.Called(taskID, fc)
	job, _ := args.Get(0).(task.Job)
	return job, args.Error(1)
}

// MockAdmission is a mock implementation of Admission
type MockAdmission struct {
	mock.Mock
}

func (m *MockAdmission) TryAcquire() bool {
	return m.Called().Bool(0)
}

func (m *MockAdmission) Release() {
	m.Called()
}

// stubJob satisfies task.Job without doing any work
type stubJob struct {
	id uuid.UUID
}

func (j stubJob) ID() uuid.UUID { return j.id }
func (j stubJob) Type() string  { return task.JobTypeZonalStats }
func (j stubJob) Execute(context.Context) ([]domain.StatisticRecord, error) {
	return nil, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (l *eventLog) HandleEvent(_ context.Context, ev *events.TaskEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	return fc
}

type fixture struct {
	manager   *task.Manager
	admission *task.AdmissionController
	runner    *MockJobRunner
	factory   *MockJobFactory
	events    *eventLog
	svc       ZonalStatsService
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()

	log := &eventLog{}
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(log)

	f := &fixture{
		manager:   task.NewManager(emitter, discardLogger()),
		admission: task.NewAdmissionController(capacity, discardLogger()),
		runner:    &MockJobRunner{},
		factory:   &MockJobFactory{},
		events:    log,
	}

	svc, err := NewZonalStatsService(f.manager, f.admission, f.runner, f.factory, emitter, discardLogger())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewZonalStatsService_Validation(t *testing.T) {
	admission := &MockAdmission{}
	manager := task.NewManager(nil, discardLogger())

	tests := []struct {
		name    string
		build   func() (ZonalStatsService, error)
		message string
	}{
		{"nil tasks", func() (ZonalStatsService, error) {
			return NewZonalStatsService(nil, admission, &MockJobRunner{}, &MockJobFactory{}, nil, nil)
		}, "tasks cannot be nil"},
		{"nil admission", func() (ZonalStatsService, error) {
			return NewZonalStatsService(manager, nil, &MockJobRunner{}, &MockJobFactory{}, nil, nil)
		}, "admission cannot be nil"},
		{"nil runner", func() (ZonalStatsService, error) {
			return NewZonalStatsService(manager, admission, nil, &MockJobFactory{}, nil, nil)
		}, "runner cannot be nil"},
		{"nil factory", func() (ZonalStatsService, error) {
			return NewZonalStatsService(manager, admission, &MockJobRunner{}, nil, nil, nil)
		}, "factory cannot be nil"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := tc.build()
			assert.Nil(t, svc)
			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	svc, err := NewZonalStatsService(manager, admission, &MockJobRunner{}, &MockJobFactory{}, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestSubmit_Accepted(t *testing.T) {
	f := newFixture(t, 2)
	fc := collection()

	var created uuid.UUID
	f.factory.On("CreateJob", mock.AnythingOfType("uuid.UUID"), fc).
		Run(func(args mock.Arguments) { created = args.Get(0).(uuid.UUID) }).
		Return(stubJob{}, nil)
	f.runner.On("Submit", mock.Anything).Return(nil)

	id, err := f.svc.Submit(context.Background(), fc)
	require.NoError(t, err)
	assert.Equal(t, created, id)

	got, err := f.svc.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusAccepted, got.Status)

	// The slot stays claimed until the runner releases it
	assert.Equal(t, 1, f.admission.InFlight())
	assert.Equal(t, []events.EventType{events.TaskCreated}, f.events.types())

	f.factory.AssertExpectations(t)
	f.runner.AssertExpectations(t)
}

func TestSubmit_OverloadCreatesNoTask(t *testing.T) {
	f := newFixture(t, 1)
	fc := collection()

	f.factory.On("CreateJob", mock.Anything, fc).Return(stubJob{}, nil).Once()
	f.runner.On("Submit", mock.Anything).Return(nil).Once()

	first, err := f.svc.Submit(context.Background(), fc)
	require.NoError(t, err)

	id, err := f.svc.Submit(context.Background(), fc)
	assert.ErrorIs(t, err, domain.ErrOverloaded)
	assert.Equal(t, uuid.Nil, id)

	// Only the first submission is known to the manager
	counts := f.manager.Counts()
	assert.Equal(t, 1, counts[task.StatusAccepted])
	_, err = f.svc.GetTask(context.Background(), first)
	assert.NoError(t, err)

	assert.Equal(t, 1, f.admission.InFlight())
	assert.Equal(t, []events.EventType{events.TaskCreated, events.TaskRejected}, f.events.types())

	f.factory.AssertExpectations(t)
	f.runner.AssertExpectations(t)
}

func TestSubmit_RunnerClosed(t *testing.T) {
	f := newFixture(t, 1)
	fc := collection()

	f.factory.On("CreateJob", mock.Anything, fc).Return(stubJob{}, nil)
	f.runner.On("Submit", mock.Anything).Return(errors.Join(errors.New("failed to submit job"), task.ErrQueueClosed))

	id, err := f.svc.Submit(context.Background(), fc)
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Equal(t, uuid.Nil, id)

	// The slot is handed back and the orphaned task is failed
	assert.Equal(t, 0, f.admission.InFlight())
	counts := f.manager.Counts()
	assert.Equal(t, 1, counts[task.StatusFailed])
	assert.Equal(t, 0, counts[task.StatusAccepted])
}

func TestSubmit_FactoryError(t *testing.T) {
	f := newFixture(t, 1)
	fc := collection()
	boom := errors.New("nil executor")

	f.factory.On("CreateJob", mock.Anything, fc).Return(nil, boom)

	_, err := f.svc.Submit(context.Background(), fc)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "submit", serviceErr.Op)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, f.admission.InFlight())
	assert.Equal(t, 1, f.manager.Counts()[task.StatusFailed])
	f.runner.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestSubmit_RejectedWithMockAdmission(t *testing.T) {
	admission := &MockAdmission{}
	admission.On("TryAcquire").Return(false)

	runner := &MockJobRunner{}
	factory := &MockJobFactory{}
	manager := task.NewManager(nil, discardLogger())

	svc, err := NewZonalStatsService(manager, admission, runner, factory, nil, discardLogger())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), collection())
	assert.ErrorIs(t, err, domain.ErrOverloaded)

	admission.AssertNotCalled(t, "Release")
	factory.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
	for status, n := range manager.Counts() {
		assert.Zero(t, n, status)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
