package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/events"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/phrazzld/keepsake-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	events []*events.TaskRequestEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestNewTaskRequestEvent(t *testing.T) {
	t.Parallel()

	type payload struct {
		AssetID uuid.UUID `json:"asset_id"`
	}

	assetID := uuid.New()
	ev, err := events.NewTaskRequestEvent(domain.TaskTypeEmbed, payload{AssetID: assetID}, 5)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, domain.TaskTypeEmbed, ev.Type)
	assert.Equal(t, 5, ev.Priority)
	assert.False(t, ev.CreatedAt.IsZero())

	var decoded payload
	require.NoError(t, ev.UnmarshalPayload(&decoded))
	assert.Equal(t, assetID, decoded.AssetID)
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers to all handlers in order", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		a := &recordingHandler{}
		b := &recordingHandler{}
		emitter.RegisterHandler(a)
		emitter.RegisterHandler(b)

		ev, err := events.NewTaskRequestEvent(domain.TaskTypeCaption, nil, 0)
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(ctx, ev))

		require.Len(t, a.events, 1)
		require.Len(t, b.events, 1)
		assert.Equal(t, ev.ID, a.events[0].ID)
	})

	t.Run("failing handler does not block the rest", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		failing := &recordingHandler{err: errors.New("insert failed")}
		healthy := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(healthy)

		ev, err := events.NewTaskRequestEvent(domain.TaskTypeEmbed, nil, 0)
		require.NoError(t, err)

		err = emitter.EmitEvent(ctx, ev)
		assert.ErrorContains(t, err, "insert failed")
		assert.Len(t, healthy.events, 1)
	})

	t.Run("no handlers is a no-op", func(t *testing.T) {
		t.Parallel()

		emitter := events.NewInMemoryEventEmitter(discardLogger())
		ev, err := events.NewTaskRequestEvent(domain.TaskTypeEmbed, nil, 0)
		require.NoError(t, err)
		assert.NoError(t, emitter.EmitEvent(ctx, ev))
	})
}

func TestTaskEnqueueHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := task.NewMemoryTaskStore()
	handler := events.NewTaskEnqueueHandler(s, discardLogger())

	assetID := uuid.New()
	ev, err := events.NewTaskRequestEvent(domain.TaskTypeEmbed,
		map[string]any{"asset_id": assetID}, 3)
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(ctx, ev))

	tasks, err := s.List(ctx, store.TaskListFilter{Type: domain.TaskTypeEmbed})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatePending, tasks[0].State)
	assert.Equal(t, 3, tasks[0].Priority)
	assert.Contains(t, string(tasks[0].Payload), assetID.String())
}
