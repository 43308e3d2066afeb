package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusAborted   TaskStatus = "aborted"
)

// Task represents one conversational turn handed to the orchestrator.
type Task struct {
	ID         string
	Goal       string
	Status     TaskStatus
	Result     any
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Metadata   map[string]string
}

// NewTask creates a task with a generated ID.
func NewTask(goal string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Goal:      goal,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	t.Status = TaskStatusRunning
	t.StartedAt = time.Now().UTC()
}

// Complete marks the task as completed with a result.
func (t *Task) Complete(result any) {
	t.Status = TaskStatusCompleted
	t.Result = result
	t.FinishedAt = time.Now().UTC()
}

// Fail marks the task as failed with an error message.
func (t *Task) Fail(msg string) {
	t.Status = TaskStatusFailed
	t.Error = msg
	t.FinishedAt = time.Now().UTC()
}

// Abort marks the task as aborted with a reason.
func (t *Task) Abort(reason string) {
	t.Status = TaskStatusAborted
	t.Error = reason
	t.FinishedAt = time.Now().UTC()
}
