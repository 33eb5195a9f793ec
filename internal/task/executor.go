package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/platform/logger"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// Handler executes one claimed task and reports how it ended. Handlers must
// not mutate task lifecycle state directly; the executor interprets the
// returned Outcome and performs exactly one transition.
//
// Long-running handlers are expected to poll HandlerContext.Canceled at
// bounded intervals and return Canceled() when the flag is set. Cancellation
// is strictly advisory: a handler that never checks runs to completion.
type Handler func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome

// HandlerContext is the per-invocation plumbing the executor hands to a
// handler: progress reporting, cooperative cancellation checks, and
// follow-on task creation, all backed by the shared task store.
type HandlerContext struct {
	tasks  store.TaskStore
	logger *slog.Logger
	taskID int64
}

// Logger returns the task-scoped logger.
func (hc *HandlerContext) Logger() *slog.Logger {
	return hc.logger
}

// Canceled re-reads the cancellation flag from the store. Handlers doing
// long iterations should call this once per processed item or time slice.
func (hc *HandlerContext) Canceled(ctx context.Context) (bool, error) {
	return hc.tasks.CancelRequested(ctx, hc.taskID)
}

// ReportProgress persists handler progress so status queries can observe it
// before the task reaches a terminal state.
func (hc *HandlerContext) ReportProgress(ctx context.Context, current, total int) error {
	return hc.tasks.UpdateProgress(ctx, hc.taskID, current, total)
}

// Enqueue inserts a follow-on task (e.g. one face_embed per detected face).
// The payload is marshaled to JSON.
func (hc *HandlerContext) Enqueue(ctx context.Context, taskType string, payload any, priority int) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload for %s task: %w", taskType, err)
	}

	t, err := domain.NewTask(taskType, raw, priority)
	if err != nil {
		return 0, err
	}

	if err := hc.tasks.Insert(ctx, t); err != nil {
		return 0, fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}

	hc.logger.Debug("enqueued follow-on task",
		"follow_on_id", t.ID,
		"follow_on_type", taskType)
	return t.ID, nil
}

// ExecutorConfig holds configuration for the task executor.
type ExecutorConfig struct {
	// WorkerCount determines how many concurrent worker loops Start spawns.
	WorkerCount int

	// PollInterval is how long an idle worker sleeps before polling again.
	PollInterval time.Duration

	// ErrorInterval is how long a worker backs off after an infrastructure
	// error (store unreachable) before retrying the loop.
	ErrorInterval time.Duration

	// MaxRetries is the number of transient failures a task may accumulate
	// before it is dead-lettered.
	MaxRetries int
}

// DefaultExecutorConfig returns an ExecutorConfig with reasonable defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		WorkerCount:   2,
		PollInterval:  time.Second,
		ErrorInterval: 5 * time.Second,
		MaxRetries:    5,
	}
}

// Executor is the scheduler/worker core: it claims runnable tasks from the
// store one at a time, dispatches them to registered handlers, and applies
// the state machine. Multiple worker loops share nothing but the store; the
// store's atomic claim is the only mutual exclusion.
type Executor struct {
	store    store.TaskStore
	registry *Registry
	backoff  *BackoffPolicy
	config   ExecutorConfig
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewExecutor creates a new Executor.
func NewExecutor(
	taskStore store.TaskStore,
	registry *Registry,
	backoff *BackoffPolicy,
	config ExecutorConfig,
	log *slog.Logger,
) *Executor {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ErrorInterval <= 0 {
		config.ErrorInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		store:      taskStore,
		registry:   registry,
		backoff:    backoff,
		config:     config,
		logger:     log,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// RunOnce attempts to claim and process exactly one runnable task.
//
// Returns (false, nil) when no task is eligible — absence of work is a
// normal, immediately-returning outcome; polling cadence belongs to the
// caller. Returns a non-nil error only for infrastructure failures (store
// unreachable); handler failures are absorbed into the claimed task's state
// and never escape.
func (e *Executor) RunOnce(ctx context.Context) (bool, error) {
	claimed, err := e.store.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim next task: %w", err)
	}
	if claimed == nil {
		return false, nil
	}

	log := e.logger.With(
		"task_id", claimed.ID,
		"task_type", claimed.Type,
	)

	// A cancel requested while the task was still pending is honored here,
	// before any handler work starts.
	if claimed.CancelRequested {
		log.Info("task canceled before execution")
		if err := e.store.MarkCanceled(ctx, claimed.ID); err != nil {
			return true, fmt.Errorf("failed to mark task canceled: %w", err)
		}
		return true, nil
	}

	handler, ok := e.registry.Lookup(claimed.Type)
	if !ok {
		// Configuration bug, not a transient condition: dead-letter directly.
		msg := fmt.Sprintf("no handler registered for task type %q", claimed.Type)
		log.Error("dead-lettering task with unregistered type")
		if err := e.store.MarkDead(ctx, claimed.ID, msg); err != nil {
			return true, fmt.Errorf("failed to mark task dead: %w", err)
		}
		return true, nil
	}

	log.Info("processing task", "retry_count", claimed.RetryCount)
	outcome := e.invoke(ctx, log, handler, claimed)

	if err := e.finalize(ctx, log, claimed, outcome); err != nil {
		return true, err
	}
	return true, nil
}

// invoke runs the handler with panic containment: a panicking handler is
// treated as a transient failure of that task, never as a crash of the
// worker loop.
func (e *Executor) invoke(
	ctx context.Context,
	log *slog.Logger,
	handler Handler,
	claimed *domain.Task,
) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("handler panicked", "panic", p)
			outcome = Retryf("handler panic: %v", p)
		}
	}()

	hc := &HandlerContext{
		tasks:  e.store,
		logger: log,
		taskID: claimed.ID,
	}

	return handler(logger.WithLogger(ctx, log), hc, claimed)
}

// finalize maps the handler outcome onto exactly one state transition.
func (e *Executor) finalize(
	ctx context.Context,
	log *slog.Logger,
	claimed *domain.Task,
	outcome Outcome,
) error {
	switch outcome.kind {
	case outcomeSuccess:
		log.Info("task completed successfully")
		if err := e.store.MarkDone(ctx, claimed.ID); err != nil {
			return fmt.Errorf("failed to mark task done: %w", err)
		}

	case outcomeCanceled:
		log.Info("task canceled by handler")
		if err := e.store.MarkCanceled(ctx, claimed.ID); err != nil {
			return fmt.Errorf("failed to mark task canceled: %w", err)
		}

	case outcomeFatal:
		log.Error("task failed fatally", "error", outcome.Err())
		if err := e.store.MarkDead(ctx, claimed.ID, outcome.errMessage()); err != nil {
			return fmt.Errorf("failed to mark task dead: %w", err)
		}

	case outcomeRetry:
		if claimed.RetryCount >= e.config.MaxRetries {
			log.Error("task exhausted retries, dead-lettering",
				"error", outcome.Err(),
				"retry_count", claimed.RetryCount,
				"max_retries", e.config.MaxRetries)
			if err := e.store.MarkDead(ctx, claimed.ID, outcome.errMessage()); err != nil {
				return fmt.Errorf("failed to mark task dead: %w", err)
			}
			return nil
		}

		nextRetry := claimed.RetryCount + 1
		delay := e.backoff.NextDelay(nextRetry)
		scheduledAt := time.Now().UTC().Add(delay)
		log.Warn("task failed transiently, scheduling retry",
			"error", outcome.Err(),
			"retry_count", nextRetry,
			"delay", delay)
		if err := e.store.MarkRetry(ctx, claimed.ID, scheduledAt, outcome.errMessage()); err != nil {
			return fmt.Errorf("failed to schedule task retry: %w", err)
		}

	default:
		return fmt.Errorf("unknown handler outcome %d for task %d", outcome.kind, claimed.ID)
	}

	return nil
}

// Start spawns the configured number of worker loops.
func (e *Executor) Start() {
	e.StartWorkers(e.config.WorkerCount)
}

// StartWorkers spawns n independent worker loops, each repeatedly calling
// RunOnce and sleeping the poll interval when idle. Workers rely solely on
// the store's atomic claim for mutual exclusion.
func (e *Executor) StartWorkers(n int) {
	e.logger.Info("starting task workers",
		"worker_count", n,
		"registered_types", e.registry.Types())

	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
}

// Stop signals all worker loops to exit and waits for them to drain.
// In-flight handlers run to completion; there is no preemption.
func (e *Executor) Stop() {
	e.cancelFunc()
	e.wg.Wait()
	e.logger.Info("task workers stopped")
}

// worker is a single poll loop.
func (e *Executor) worker(id int) {
	defer e.wg.Done()

	log := e.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		select {
		case <-e.ctx.Done():
			log.Debug("stopping worker")
			return
		default:
		}

		did, err := e.RunOnce(e.ctx)
		switch {
		case err != nil:
			// Infrastructure error: back off before hammering the store.
			log.Error("worker iteration failed", "error", err)
			e.sleep(e.config.ErrorInterval)
		case !did:
			e.sleep(e.config.PollInterval)
		}
	}
}

// sleep waits for d or until the executor is stopped, whichever comes first.
func (e *Executor) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
	case <-timer.C:
	}
}
