package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/phrazzld/keepsake-api/internal/task"
)

// TaskService exposes the operator-facing task operations: manual enqueue,
// status, listing (including the dead-letter view), cancellation and requeue.
type TaskService struct {
	tasks    store.TaskStore
	registry *task.Registry
	logger   *slog.Logger
}

// NewTaskService creates a TaskService. The registry is used to reject
// enqueue requests for types nothing can execute.
func NewTaskService(tasks store.TaskStore, registry *task.Registry, logger *slog.Logger) (*TaskService, error) {
	if tasks == nil {
		return nil, NewServiceError("create_service", "task store cannot be nil", nil)
	}
	if registry == nil {
		return nil, NewServiceError("create_service", "registry cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		tasks:    tasks,
		registry: registry,
		logger:   logger.With("component", "task_service"),
	}, nil
}

// Enqueue creates a pending task of a registered type. Unknown types are
// rejected here rather than dead-lettered later by the executor.
func (s *TaskService) Enqueue(ctx context.Context, taskType string, payload json.RawMessage, priority int) (*domain.Task, error) {
	if _, ok := s.registry.Lookup(taskType); !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTaskType, taskType, s.registry.Types())
	}

	t, err := domain.NewTask(taskType, payload, priority)
	if err != nil {
		return nil, NewServiceError("enqueue_task", "invalid task", err)
	}

	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, NewServiceError("enqueue_task", "failed to persist task", err)
	}

	s.logger.Info("task enqueued",
		"task_id", t.ID,
		"task_type", taskType,
		"priority", priority)
	return t, nil
}

// Get retrieves a task with its full status, including progress and retry
// bookkeeping.
func (s *TaskService) Get(ctx context.Context, id int64) (*domain.Task, error) {
	return s.tasks.Get(ctx, id)
}

// List retrieves tasks matching the filter, newest first.
func (s *TaskService) List(ctx context.Context, filter store.TaskListFilter) ([]*domain.Task, error) {
	return s.tasks.List(ctx, filter)
}

// Cancel requests cooperative cancellation of a task. Idempotent; a task
// that already finished is left as is.
func (s *TaskService) Cancel(ctx context.Context, id int64) error {
	if err := s.tasks.RequestCancel(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task cancellation requested", "task_id", id)
	return nil
}

// Requeue moves a dead task back into the queue with its retry budget reset.
func (s *TaskService) Requeue(ctx context.Context, id int64) error {
	if err := s.tasks.Requeue(ctx, id); err != nil {
		return err
	}
	s.logger.Info("dead task requeued", "task_id", id)
	return nil
}

// Metrics returns the per-state task counts straight from the store.
func (s *TaskService) Metrics(ctx context.Context) (map[domain.TaskState]int64, error) {
	return s.tasks.CountByState(ctx)
}
