package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task statuses, in lifecycle order.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// ErrRebuildInProgress is returned when a rebuild is requested while one is
// already pending or running. The summary table is regenerated in place, so
// two concurrent rebuilds would interleave deletes and inserts.
var ErrRebuildInProgress = errors.New("a summary rebuild is already in progress")

// Task is one tracked rebuild run.
type Task struct {
	ID         string
	Status     string
	Rows       int
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// RebuildTracker serializes summary rebuilds and keeps a short history of
// runs for inspection.
type RebuildTracker struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	active string // id of the pending/running task, "" when idle
	logger *zap.Logger
}

func NewRebuildTracker(logger *zap.Logger) *RebuildTracker {
	return &RebuildTracker{tasks: map[string]*Task{}, logger: logger}
}

// Run executes fn under the single-flight guard. The returned task reflects
// the finished state; a second caller while fn runs gets
// ErrRebuildInProgress immediately instead of queueing.
func (t *RebuildTracker) Run(ctx context.Context, fn func(ctx context.Context) (int, error)) (*Task, error) {
	task, err := t.begin()
	if err != nil {
		return nil, err
	}

	rows, runErr := fn(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	task.FinishedAt = time.Now()
	task.Rows = rows
	if runErr != nil {
		task.Status = TaskFailed
		task.Error = runErr.Error()
	} else {
		task.Status = TaskCompleted
	}
	t.active = ""

	if runErr != nil {
		t.logger.Error("summary rebuild failed",
			zap.String("task_id", task.ID),
			zap.Error(runErr),
		)
		return t.snapshot(task), runErr
	}
	t.logger.Info("summary rebuild completed",
		zap.String("task_id", task.ID),
		zap.Int("rows", rows),
		zap.Duration("elapsed", task.FinishedAt.Sub(task.StartedAt)),
	)
	return t.snapshot(task), nil
}

func (t *RebuildTracker) begin() (*Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != "" {
		return nil, ErrRebuildInProgress
	}
	now := time.Now()
	task := &Task{
		ID:        uuid.NewString(),
		Status:    TaskRunning,
		CreatedAt: now,
		StartedAt: now,
	}
	t.tasks[task.ID] = task
	t.active = task.ID
	return task, nil
}

// Get returns a copy of a tracked task.
func (t *RebuildTracker) Get(id string) (*Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return nil, false
	}
	return t.snapshot(task), true
}

// Active reports the id of the in-flight task, if any.
func (t *RebuildTracker) Active() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.active != ""
}

// CleanupOlderThan drops finished tasks whose run ended before the cutoff
// and returns how many were removed. The active task is never dropped.
func (t *RebuildTracker) CleanupOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, task := range t.tasks {
		if id == t.active {
			continue
		}
		if task.Status != TaskCompleted && task.Status != TaskFailed {
			continue
		}
		if task.FinishedAt.Before(cutoff) {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

func (t *RebuildTracker) snapshot(task *Task) *Task {
	c := *task
	return &c
}
