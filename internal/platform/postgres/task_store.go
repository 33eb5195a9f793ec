package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/platform/logger"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// taskColumns is the canonical column list for scanning a full task row.
const taskColumns = `id, type, payload, state, priority, retry_count, last_error,
	scheduled_at, cancel_requested, progress_current, progress_total,
	started_at, finished_at, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore. It accepts any DBTX,
// so it can run against the pool or inside a transaction.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a new store instance bound to the given transaction, so task
// fan-out can share a unit of work with asset creation.
func (s *PostgresTaskStore) WithTx(tx store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: tx}
}

// Insert persists a new task and assigns its bigserial ID.
func (s *PostgresTaskStore) Insert(ctx context.Context, t *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := t.Validate(); err != nil {
		return store.NewStoreError("task", "insert", "validation failed", err)
	}

	query := `
		INSERT INTO tasks (type, payload, state, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		t.Type,
		[]byte(t.Payload),
		t.State,
		t.Priority,
		now,
	).Scan(&t.ID)
	if err != nil {
		log.Error("failed to insert task", "task_type", t.Type, "error", err)
		return fmt.Errorf("failed to insert task: %w", MapError(err))
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// Get retrieves a task by ID.
func (s *PostgresTaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task %d: %w", id, MapError(err))
	}
	return t, nil
}

// List retrieves tasks matching the filter, newest first.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskListFilter) ([]*domain.Task, error) {
	query, args := buildTaskListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// buildTaskListQuery assembles the List query for the given filter.
func buildTaskListQuery(filter store.TaskListFilter) (string, []any) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any

	where := ""
	if filter.State != "" {
		args = append(args, filter.State)
		where = ` WHERE state = $` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		if where == "" {
			where = ` WHERE type = $` + strconv.Itoa(len(args))
		} else {
			where += ` AND type = $` + strconv.Itoa(len(args))
		}
	}

	query += where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return query, args
}

// ClaimNext atomically claims the next runnable task. The CTE selects the
// winner under FOR UPDATE SKIP LOCKED so concurrent workers skip rows another
// transaction already holds instead of blocking on them; the UPDATE then
// flips the row to running in the same statement.
func (s *PostgresTaskStore) ClaimNext(ctx context.Context) (*domain.Task, error) {
	query := `
		WITH next AS (
			SELECT id
			FROM tasks
			WHERE state = 'pending'
			  AND (scheduled_at IS NULL OR scheduled_at <= $1)
			ORDER BY priority ASC, scheduled_at ASC NULLS FIRST, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tasks t
		SET state = 'running', started_at = $1, updated_at = $1
		FROM next
		WHERE t.id = next.id
		RETURNING t.id, t.type, t.payload, t.state, t.priority, t.retry_count,
			t.last_error, t.scheduled_at, t.cancel_requested,
			t.progress_current, t.progress_total,
			t.started_at, t.finished_at, t.created_at, t.updated_at
	`

	now := time.Now().UTC()
	t, err := scanTask(s.db.QueryRowContext(ctx, query, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No eligible task. Normal outcome, not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim next task: %w", MapError(err))
	}
	return t, nil
}

// MarkDone transitions a running task to done.
func (s *PostgresTaskStore) MarkDone(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET state = 'done', last_error = NULL, finished_at = $2, updated_at = $2
		WHERE id = $1 AND state = 'running'
	`
	return s.transition(ctx, "mark done", query, id, time.Now().UTC())
}

// MarkRetry transitions a running task back to pending for a delayed retry.
// retry_count is incremented here, in the same statement as the state flip,
// so a crash between handler return and bookkeeping cannot lose an attempt.
func (s *PostgresTaskStore) MarkRetry(ctx context.Context, id int64, scheduledAt time.Time, errMsg string) error {
	query := `
		UPDATE tasks
		SET state = 'pending', retry_count = retry_count + 1,
		    scheduled_at = $2, last_error = $3, started_at = NULL, updated_at = $4
		WHERE id = $1 AND state = 'running'
	`
	return s.transition(ctx, "mark retry", query, id, scheduledAt, errMsg, time.Now().UTC())
}

// MarkDead transitions a running task to dead.
func (s *PostgresTaskStore) MarkDead(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE tasks
		SET state = 'dead', last_error = $2, finished_at = $3, updated_at = $3
		WHERE id = $1 AND state = 'running'
	`
	return s.transition(ctx, "mark dead", query, id, errMsg, time.Now().UTC())
}

// MarkCanceled transitions a running task to canceled.
func (s *PostgresTaskStore) MarkCanceled(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET state = 'canceled', finished_at = $2, updated_at = $2
		WHERE id = $1 AND state = 'running'
	`
	return s.transition(ctx, "mark canceled", query, id, time.Now().UTC())
}

// RequestCancel sets cancel_requested on a pending or running task. Terminal
// tasks are left untouched and the call succeeds, keeping the operation
// idempotent.
func (s *PostgresTaskStore) RequestCancel(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET cancel_requested = TRUE, updated_at = $2
		WHERE id = $1 AND state IN ('pending', 'running')
	`

	result, err := s.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to request cancellation for task %d: %w", id, MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the task does not exist or it already finished. Only the
		// former is an error.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CancelRequested re-reads the cancel_requested flag for a task.
func (s *PostgresTaskStore) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var requested bool
	err := s.db.QueryRowContext(ctx,
		`SELECT cancel_requested FROM tasks WHERE id = $1`, id,
	).Scan(&requested)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, store.ErrTaskNotFound
		}
		return false, fmt.Errorf("failed to read cancellation flag for task %d: %w", id, MapError(err))
	}
	return requested, nil
}

// Requeue moves a dead task back to pending with its retry bookkeeping reset.
func (s *PostgresTaskStore) Requeue(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET state = 'pending', retry_count = 0, last_error = NULL,
		    cancel_requested = FALSE, scheduled_at = NULL,
		    started_at = NULL, finished_at = NULL, updated_at = $2
		WHERE id = $1 AND state = 'dead'
	`
	return s.transition(ctx, "requeue", query, id, time.Now().UTC())
}

// UpdateProgress records handler-reported progress on a task.
func (s *PostgresTaskStore) UpdateProgress(ctx context.Context, id int64, current, total int) error {
	query := `
		UPDATE tasks
		SET progress_current = $2, progress_total = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, current, total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update progress for task %d: %w", id, MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// CountByState aggregates task counts per state directly over the table.
func (s *PostgresTaskStore) CountByState(ctx context.Context) (map[domain.TaskState]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by state: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskState]int64)
	for rows.Next() {
		var state domain.TaskState
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count row: %w", err)
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state count rows: %w", err)
	}
	return counts, nil
}

// transition runs a guarded UPDATE whose WHERE clause encodes the allowed
// source state. Zero affected rows means the task is either missing or in the
// wrong state; a follow-up read distinguishes the two.
func (s *PostgresTaskStore) transition(ctx context.Context, op, query string, id int64, args ...any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		log.Error("task transition failed", "op", op, "task_id", id, "error", err)
		return fmt.Errorf("failed to %s task %d: %w", op, id, MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("cannot %s task %d: %w", op, id, store.ErrInvalidTransition)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans a full task row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var payload []byte
	var lastError sql.NullString
	var scheduledAt, startedAt, finishedAt sql.NullTime
	var progressCurrent, progressTotal sql.NullInt64

	err := row.Scan(
		&t.ID,
		&t.Type,
		&payload,
		&t.State,
		&t.Priority,
		&t.RetryCount,
		&lastError,
		&scheduledAt,
		&t.CancelRequested,
		&progressCurrent,
		&progressTotal,
		&startedAt,
		&finishedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Payload = payload
	t.LastError = lastError.String
	if scheduledAt.Valid {
		v := scheduledAt.Time
		t.ScheduledAt = &v
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if finishedAt.Valid {
		v := finishedAt.Time
		t.FinishedAt = &v
	}
	if progressCurrent.Valid {
		v := int(progressCurrent.Int64)
		t.ProgressCurrent = &v
	}
	if progressTotal.Valid {
		v := int(progressTotal.Int64)
		t.ProgressTotal = &v
	}
	return &t, nil
}
