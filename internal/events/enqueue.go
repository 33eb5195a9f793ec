package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// TaskEnqueueHandler is the EventHandler that turns task request events into
// persisted tasks. It is the bridge between ingestion's fan-out decisions and
// the executor's queue.
type TaskEnqueueHandler struct {
	tasks  store.TaskStore
	logger *slog.Logger
}

// Ensure TaskEnqueueHandler implements EventHandler.
var _ EventHandler = (*TaskEnqueueHandler)(nil)

// NewTaskEnqueueHandler creates a handler that persists tasks into the given
// store.
func NewTaskEnqueueHandler(tasks store.TaskStore, logger *slog.Logger) *TaskEnqueueHandler {
	return &TaskEnqueueHandler{
		tasks:  tasks,
		logger: logger.With("component", "task_enqueue_handler"),
	}
}

// HandleEvent creates a pending task from the event.
func (h *TaskEnqueueHandler) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	t, err := domain.NewTask(event.Type, event.Payload, event.Priority)
	if err != nil {
		return fmt.Errorf("failed to build task from event %s: %w", event.ID, err)
	}

	if err := h.tasks.Insert(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue task from event %s: %w", event.ID, err)
	}

	h.logger.Debug("task enqueued from event",
		"event_id", event.ID,
		"task_id", t.ID,
		"task_type", t.Type)
	return nil
}
