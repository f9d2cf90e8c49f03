package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTracker_RunRecordsOutcome(t *testing.T) {
	tr := NewRebuildTracker(zap.NewNop())

	task, err := tr.Run(context.Background(), func(context.Context) (int, error) {
		return 120, nil
	})

	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, 120, task.Rows)
	assert.NotEmpty(t, task.ID)
	assert.False(t, task.FinishedAt.IsZero())

	got, ok := tr.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, got.Status)

	_, active := tr.Active()
	assert.False(t, active)
}

func TestTracker_RunFailureKeepsError(t *testing.T) {
	tr := NewRebuildTracker(zap.NewNop())
	boom := errors.New("copy failed")

	task, err := tr.Run(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Equal(t, "copy failed", task.Error)

	// A failed run releases the guard.
	_, err = tr.Run(context.Background(), func(context.Context) (int, error) { return 1, nil })
	assert.NoError(t, err)
}

func TestTracker_ConcurrentRunRejected(t *testing.T) {
	tr := NewRebuildTracker(zap.NewNop())
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tr.Run(context.Background(), func(context.Context) (int, error) {
			close(started)
			<-release
			return 5, nil
		})
	}()

	<-started
	_, err := tr.Run(context.Background(), func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	id, active := tr.Active()
	assert.True(t, active)
	assert.NotEmpty(t, id)

	close(release)
	wg.Wait()

	_, active = tr.Active()
	assert.False(t, active)
}

func TestTracker_CleanupOlderThan(t *testing.T) {
	tr := NewRebuildTracker(zap.NewNop())

	old, err := tr.Run(context.Background(), func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	// Age the finished task past the cutoff.
	tr.mu.Lock()
	tr.tasks[old.ID].FinishedAt = time.Now().Add(-2 * time.Hour)
	tr.mu.Unlock()

	fresh, err := tr.Run(context.Background(), func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)

	removed := tr.CleanupOlderThan(time.Hour)

	assert.Equal(t, 1, removed)
	_, ok := tr.Get(old.ID)
	assert.False(t, ok)
	_, ok = tr.Get(fresh.ID)
	assert.True(t, ok)
}
