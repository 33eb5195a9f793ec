package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskState represents the lifecycle state of a task
type TaskState string

// Possible task state values
const (
	TaskStatePending  TaskState = "pending"
	TaskStateRunning  TaskState = "running"
	TaskStateDone     TaskState = "done"
	TaskStateFailed   TaskState = "failed"
	TaskStateDead     TaskState = "dead"
	TaskStateCanceled TaskState = "canceled"
)

// Task type constants for the built-in derived-data jobs
const (
	TaskTypeEmbed           = "embed"
	TaskTypeFace            = "face"
	TaskTypeFaceEmbed       = "face_embed"
	TaskTypeCaption         = "caption"
	TaskTypePersonRecluster = "person_recluster"
	TaskTypeVideoKeyframes  = "video_keyframes"
	TaskTypeVideoSegments   = "video_segments"

	// TaskTypeFailTransient always fails with a retriable error. It exists to
	// exercise the retry, backoff and dead-letter paths end to end.
	TaskTypeFailTransient = "fail_transient"
)

// Common validation errors for Task
var (
	ErrEmptyTaskType    = errors.New("task type cannot be empty")
	ErrInvalidTaskState = errors.New("invalid task state")
	ErrTaskNotDead      = errors.New("task is not in dead state")
)

// Task represents a persisted unit of background work. The executor owns all
// state transitions after creation; the payload is opaque to it and only the
// registered handler interprets it.
type Task struct {
	ID              int64           `json:"id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	State           TaskState       `json:"state"`
	Priority        int             `json:"priority"`
	RetryCount      int             `json:"retry_count"`
	LastError       string          `json:"last_error,omitempty"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	ProgressCurrent *int            `json:"progress_current,omitempty"`
	ProgressTotal   *int            `json:"progress_total,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewTask creates a pending Task with the given type, payload and priority.
// The ID is zero until the task is persisted; the store assigns it.
// Returns an error if validation fails.
func NewTask(taskType string, payload json.RawMessage, priority int) (*Task, error) {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}

	now := time.Now().UTC()
	task := &Task{
		Type:      taskType,
		Payload:   payload,
		State:     TaskStatePending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.Type == "" {
		return ErrEmptyTaskType
	}

	if !isValidTaskState(t.State) {
		return ErrInvalidTaskState
	}

	return nil
}

// Terminal reports whether the task has reached a terminal state.
// Terminal tasks are never claimed again; dead tasks may only re-enter the
// queue through an explicit requeue.
func (t *Task) Terminal() bool {
	switch t.State {
	case TaskStateDone, TaskStateDead, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// Runnable reports whether the task is eligible for claiming at the given
// instant: pending, and not scheduled for the future.
func (t *Task) Runnable(now time.Time) bool {
	if t.State != TaskStatePending {
		return false
	}
	return t.ScheduledAt == nil || !t.ScheduledAt.After(now)
}

// isValidTaskState checks if the given state is a valid TaskState.
func isValidTaskState(state TaskState) bool {
	switch state {
	case TaskStatePending, TaskStateRunning, TaskStateDone,
		TaskStateFailed, TaskStateDead, TaskStateCanceled:
		return true
	default:
		return false
	}
}
