package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskEvent(t *testing.T) {
	taskID := uuid.New()
	before := time.Now().UTC()

	event := NewTaskEvent(TaskCompleted, taskID)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TaskCompleted, event.Type)
	assert.Equal(t, taskID, event.TaskID)
	assert.False(t, event.CreatedAt.Before(before))
	assert.NotEqual(t, event.ID, NewTaskEvent(TaskCompleted, taskID).ID)
}

func TestLogHandler(t *testing.T) {
	log, buf := logger.NewTestLogger()
	h := NewLogHandler(log)

	taskID := uuid.New()
	failed := NewTaskEvent(TaskFailed, taskID)
	failed.Status = "failed"
	failed.ErrorKind = "computation_error"
	require.NoError(t, h.HandleEvent(context.Background(), failed))

	rejected := NewTaskEvent(TaskRejected, uuid.Nil)
	require.NoError(t, h.HandleEvent(context.Background(), rejected))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "task failed", entries[0]["msg"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, taskID.String(), entries[0]["task_id"])
	assert.Equal(t, "computation_error", entries[0]["error_kind"])

	assert.Equal(t, "submission rejected", entries[1]["msg"])
	_, hasTask := entries[1]["task_id"]
	assert.False(t, hasTask, "rejections carry no task id")

	raw, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"task.failed"`)
}
