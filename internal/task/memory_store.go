package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// MemoryTaskStore is an in-memory implementation of store.TaskStore. It
// backs the executor tests and doubles as the store for ephemeral setups;
// the claim operation holds the store mutex for the whole read-modify-write,
// giving the same exactly-one-claimer guarantee the SQL implementation gets
// from row locking.
type MemoryTaskStore struct {
	mutex  sync.Mutex
	tasks  map[int64]*domain.Task
	nextID int64

	// ClaimFn and InsertFn, when set, replace the default behavior. Tests
	// use them to inject infrastructure failures.
	ClaimFn  func(ctx context.Context) (*domain.Task, error)
	InsertFn func(ctx context.Context, t *domain.Task) error
}

// Compile-time interface check.
var _ store.TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[int64]*domain.Task),
	}
}

// Insert persists a new task and assigns the next monotonic ID.
func (s *MemoryTaskStore) Insert(ctx context.Context, t *domain.Task) error {
	if s.InsertFn != nil {
		return s.InsertFn(ctx, t)
	}

	if err := t.Validate(); err != nil {
		return store.NewStoreError("task", "insert", "validation failed", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	t.ID = s.nextID
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// Get retrieves a task by ID.
func (s *MemoryTaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// List retrieves tasks matching the filter, newest first.
func (s *MemoryTaskStore) List(ctx context.Context, filter store.TaskListFilter) ([]*domain.Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if filter.State != "" && t.State != filter.State {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, cloneTask(t))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ClaimNext atomically claims the next runnable task: lowest priority first,
// tie-broken by earliest scheduled_at (nulls first) then lowest ID.
func (s *MemoryTaskStore) ClaimNext(ctx context.Context) (*domain.Task, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now().UTC()
	var best *domain.Task
	for _, t := range s.tasks {
		if !t.Runnable(now) {
			continue
		}
		if best == nil || claimLess(t, best) {
			best = t
		}
	}

	if best == nil {
		return nil, nil
	}

	best.State = domain.TaskStateRunning
	started := now
	best.StartedAt = &started
	best.UpdatedAt = now

	return cloneTask(best), nil
}

// claimLess orders runnable tasks by (priority, scheduled_at nulls-first, id).
func claimLess(a, b *domain.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	switch {
	case a.ScheduledAt == nil && b.ScheduledAt != nil:
		return true
	case a.ScheduledAt != nil && b.ScheduledAt == nil:
		return false
	case a.ScheduledAt != nil && b.ScheduledAt != nil && !a.ScheduledAt.Equal(*b.ScheduledAt):
		return a.ScheduledAt.Before(*b.ScheduledAt)
	}
	return a.ID < b.ID
}

// MarkDone transitions a running task to done.
func (s *MemoryTaskStore) MarkDone(ctx context.Context, id int64) error {
	return s.transition(id, domain.TaskStateRunning, func(t *domain.Task, now time.Time) {
		t.State = domain.TaskStateDone
		t.FinishedAt = &now
		t.LastError = ""
	})
}

// MarkRetry transitions a running task back to pending for a delayed retry.
func (s *MemoryTaskStore) MarkRetry(ctx context.Context, id int64, scheduledAt time.Time, errMsg string) error {
	return s.transition(id, domain.TaskStateRunning, func(t *domain.Task, now time.Time) {
		t.State = domain.TaskStatePending
		t.RetryCount++
		sched := scheduledAt
		t.ScheduledAt = &sched
		t.LastError = errMsg
		t.StartedAt = nil
	})
}

// MarkDead transitions a running task to dead.
func (s *MemoryTaskStore) MarkDead(ctx context.Context, id int64, errMsg string) error {
	return s.transition(id, domain.TaskStateRunning, func(t *domain.Task, now time.Time) {
		t.State = domain.TaskStateDead
		t.FinishedAt = &now
		t.LastError = errMsg
	})
}

// MarkCanceled transitions a running task to canceled.
func (s *MemoryTaskStore) MarkCanceled(ctx context.Context, id int64) error {
	return s.transition(id, domain.TaskStateRunning, func(t *domain.Task, now time.Time) {
		t.State = domain.TaskStateCanceled
		t.FinishedAt = &now
	})
}

// RequestCancel sets cancel_requested on a pending or running task.
// Terminal tasks are left untouched; the request is idempotent.
func (s *MemoryTaskStore) RequestCancel(ctx context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.Terminal() {
		return nil
	}

	t.CancelRequested = true
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelRequested re-reads the cancellation flag.
func (s *MemoryTaskStore) CancelRequested(ctx context.Context, id int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	return t.CancelRequested, nil
}

// Requeue moves a dead task back to pending with its retry bookkeeping reset.
func (s *MemoryTaskStore) Requeue(ctx context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.State != domain.TaskStateDead {
		return store.ErrInvalidTransition
	}

	t.State = domain.TaskStatePending
	t.RetryCount = 0
	t.LastError = ""
	t.CancelRequested = false
	t.ScheduledAt = nil
	t.StartedAt = nil
	t.FinishedAt = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateProgress records handler-reported progress.
func (s *MemoryTaskStore) UpdateProgress(ctx context.Context, id int64, current, total int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	cur, tot := current, total
	t.ProgressCurrent = &cur
	t.ProgressTotal = &tot
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// CountByState aggregates task counts per state.
func (s *MemoryTaskStore) CountByState(ctx context.Context) (map[domain.TaskState]int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	counts := make(map[domain.TaskState]int64)
	for _, t := range s.tasks {
		counts[t.State]++
	}
	return counts, nil
}

// transition applies fn to the task if it is in the expected state.
func (s *MemoryTaskStore) transition(id int64, expect domain.TaskState, fn func(t *domain.Task, now time.Time)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if t.State != expect {
		return store.ErrInvalidTransition
	}

	now := time.Now().UTC()
	fn(t, now)
	t.UpdatedAt = now
	return nil
}

// cloneTask returns a deep-enough copy so callers never alias store-internal
// state.
func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	if t.Payload != nil {
		c.Payload = append([]byte(nil), t.Payload...)
	}
	if t.ScheduledAt != nil {
		v := *t.ScheduledAt
		c.ScheduledAt = &v
	}
	if t.ProgressCurrent != nil {
		v := *t.ProgressCurrent
		c.ProgressCurrent = &v
	}
	if t.ProgressTotal != nil {
		v := *t.ProgressTotal
		c.ProgressTotal = &v
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}
