package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("valid task", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(TaskTypeEmbed, json.RawMessage(`{"asset_id":"abc"}`), 10)
		require.NoError(t, err)

		assert.Equal(t, TaskTypeEmbed, task.Type)
		assert.Equal(t, TaskStatePending, task.State)
		assert.Equal(t, 10, task.Priority)
		assert.Zero(t, task.RetryCount)
		assert.False(t, task.CancelRequested)
		assert.Nil(t, task.ScheduledAt)
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("nil payload defaults to empty object", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(TaskTypeCaption, nil, 0)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(task.Payload))
	})

	t.Run("empty type rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewTask("", nil, 0)
		assert.ErrorIs(t, err, ErrEmptyTaskType)
	})
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	task, err := NewTask(TaskTypeFace, nil, 0)
	require.NoError(t, err)

	task.State = TaskState("bogus")
	assert.ErrorIs(t, task.Validate(), ErrInvalidTaskState)
}

func TestTaskTerminal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state    TaskState
		terminal bool
	}{
		{TaskStatePending, false},
		{TaskStateRunning, false},
		{TaskStateFailed, false},
		{TaskStateDone, true},
		{TaskStateDead, true},
		{TaskStateCanceled, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			t.Parallel()

			task := &Task{Type: TaskTypeEmbed, State: tc.state}
			assert.Equal(t, tc.terminal, task.Terminal())
		})
	}
}

func TestTaskRunnable(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	t.Run("pending without schedule", func(t *testing.T) {
		t.Parallel()

		task := &Task{Type: TaskTypeEmbed, State: TaskStatePending}
		assert.True(t, task.Runnable(now))
	})

	t.Run("pending scheduled in the past", func(t *testing.T) {
		t.Parallel()

		task := &Task{Type: TaskTypeEmbed, State: TaskStatePending, ScheduledAt: &past}
		assert.True(t, task.Runnable(now))
	})

	t.Run("pending scheduled in the future", func(t *testing.T) {
		t.Parallel()

		task := &Task{Type: TaskTypeEmbed, State: TaskStatePending, ScheduledAt: &future}
		assert.False(t, task.Runnable(now))
	})

	t.Run("running is never runnable", func(t *testing.T) {
		t.Parallel()

		task := &Task{Type: TaskTypeEmbed, State: TaskStateRunning}
		assert.False(t, task.Runnable(now))
	})
}
