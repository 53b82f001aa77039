package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/task"
)

// SubmitResponse is returned with 202 Accepted for an admitted submission.
type SubmitResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

// TaskResponse is the polling view of a task. Result is present only for
// completed tasks and Error only for failed ones.
type TaskResponse struct {
	TaskID    uuid.UUID                `json:"task_id"`
	Status    string                   `json:"status"`
	Message   string                   `json:"message"`
	Result    []domain.StatisticRecord `json:"result,omitempty"`
	Error     *domain.TaskError        `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// taskPath is the validated form of the GET /v1/tasks/{taskID} path.
type taskPath struct {
	TaskID string `validate:"required,uuid"`
}

// echoPath is the validated form of the GET /v1/echo/{text} path.
type echoPath struct {
	Text string `validate:"required,max=1024"`
}

func taskToResponse(t task.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:    t.ID,
		Status:    string(t.Status),
		Message:   t.Message,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	switch t.Status {
	case task.StatusCompleted:
		resp.Result = t.Result
		if resp.Result == nil {
			resp.Result = []domain.StatisticRecord{}
		}
	case task.StatusFailed:
		resp.Error = t.Error
	}
	return resp
}
