package store

import (
	"context"
	"time"

	"github.com/phrazzld/keepsake-api/internal/domain"
)

// TaskListFilter narrows List results. Zero values mean "no constraint".
type TaskListFilter struct {
	// State restricts results to tasks in the given lifecycle state.
	State domain.TaskState

	// Type restricts results to tasks of the given type.
	Type string

	// Limit caps the number of returned tasks; zero means no cap.
	Limit int
}

// TaskStore defines the persistence interface for tasks. It is the single
// synchronization point between concurrent executor workers: ClaimNext must
// guarantee that no two callers ever receive the same task.
//
// All methods return infrastructure errors as-is (wrapped); such errors are
// never attributed to a task.
type TaskStore interface {
	// Insert persists a new task and assigns its ID. The task must be in
	// pending state.
	Insert(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by ID. Returns ErrTaskNotFound if it does not exist.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// List retrieves tasks matching the filter, newest first.
	List(ctx context.Context, filter TaskListFilter) ([]*domain.Task, error)

	// ClaimNext atomically claims the next runnable task: lowest priority
	// value first among pending tasks whose scheduled_at is null or in the
	// past, tie-broken by earliest scheduled_at then lowest ID. The claimed
	// task is transitioned to running with started_at set. Returns (nil, nil)
	// when no task is eligible. Safe under concurrent callers.
	ClaimNext(ctx context.Context) (*domain.Task, error)

	// MarkDone transitions a running task to done, sets finished_at and
	// clears last_error.
	MarkDone(ctx context.Context, id int64) error

	// MarkRetry transitions a running task back to pending for a delayed
	// retry: increments retry_count, sets scheduled_at and records the
	// failure message.
	MarkRetry(ctx context.Context, id int64, scheduledAt time.Time, errMsg string) error

	// MarkDead transitions a running task to dead, sets finished_at and
	// records the failure message.
	MarkDead(ctx context.Context, id int64, errMsg string) error

	// MarkCanceled transitions a running task to canceled and sets finished_at.
	MarkCanceled(ctx context.Context, id int64) error

	// RequestCancel sets cancel_requested on a pending or running task.
	// Idempotent: requesting cancellation of an already-canceled or terminal
	// task is a no-op.
	RequestCancel(ctx context.Context, id int64) error

	// CancelRequested re-reads the cancel_requested flag for a task. Long
	// running handlers poll this at bounded intervals.
	CancelRequested(ctx context.Context, id int64) (bool, error)

	// Requeue moves a dead task back to pending: resets retry_count to zero
	// and clears last_error, cancel_requested, scheduled_at and finished_at.
	// Returns ErrInvalidTransition if the task is not dead. This is the only
	// externally triggered backward transition in the lifecycle.
	Requeue(ctx context.Context, id int64) error

	// UpdateProgress records handler-reported progress on a task so status
	// queries can observe it before the task finishes.
	UpdateProgress(ctx context.Context, id int64, current, total int) error

	// CountByState returns the number of tasks in each state, aggregated
	// directly over the task table so metrics cannot drift from the source
	// of truth.
	CountByState(ctx context.Context) (map[domain.TaskState]int64, error)
}
