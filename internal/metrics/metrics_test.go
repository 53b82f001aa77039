package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmission struct{ inFlight, capacity int }

func (f fakeAdmission) InFlight() int { return f.inFlight }
func (f fakeAdmission) Capacity() int { return f.capacity }

func TestCollector_HandleEvent(t *testing.T) {
	t.Parallel()
	c := NewCollector(nil, nil)
	ctx := context.Background()

	emit := func(typ events.EventType, mutate func(*events.TaskEvent)) {
		e := events.NewTaskEvent(typ, uuid.New())
		if mutate != nil {
			mutate(e)
		}
		require.NoError(t, c.HandleEvent(ctx, e))
	}

	emit(events.TaskCreated, nil)
	emit(events.TaskCreated, nil)
	emit(events.TaskRejected, nil)
	emit(events.TaskStage, nil)
	emit(events.TaskCompleted, func(e *events.TaskEvent) { e.Elapsed = 2 * time.Second })
	emit(events.TaskFailed, func(e *events.TaskEvent) { e.ErrorKind = "computation_error" })

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageChanges))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksFailed.WithLabelValues("computation_error")))
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()
	counts := TaskCounterFunc(func() map[string]int {
		return map[string]int{"running": 2, "completed": 5}
	})
	c := NewCollector(fakeAdmission{inFlight: 2, capacity: 5}, counts)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, text, "carbonstats_admission_in_flight 2")
	assert.Contains(t, text, "carbonstats_admission_capacity 5")
	assert.Contains(t, text, `carbonstats_tasks{status="running"} 2`)
	assert.Contains(t, text, `carbonstats_tasks{status="completed"} 5`)
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
