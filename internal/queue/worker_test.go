package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minutes/internal/logging"
	"minutes/internal/services"
)

type recordingHandler struct {
	mu    sync.Mutex
	tasks []Task
	errs  map[TaskName]error
	block time.Duration
	done  chan struct{}
}

func newRecordingHandler(expect int) *recordingHandler {
	return &recordingHandler{
		errs: map[TaskName]error{},
		done: make(chan struct{}, expect),
	}
}

func (h *recordingHandler) Handle(ctx context.Context, task Task) error {
	if h.block > 0 {
		select {
		case <-ctx.Done():
			h.done <- struct{}{}
			return ctx.Err()
		case <-time.After(h.block):
		}
	}
	h.mu.Lock()
	h.tasks = append(h.tasks, task)
	err := h.errs[task.Name]
	h.mu.Unlock()
	h.done <- struct{}{}
	return err
}

func (h *recordingHandler) seen() []Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]Task, len(h.tasks))
	copy(cp, h.tasks)
	return cp
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for handler call %d of %d", i+1, n)
		}
	}
}

func TestWorkerPoolProcessesAndAcks(t *testing.T) {
	broker, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, broker.Enqueue(ctx, NewIngestTask("job-a", "/uploads/job-a/a.mp4")))
	require.NoError(t, broker.Enqueue(ctx, NewTranscribeTask("job-b", "/uploads/job-b", "en", "")))

	handler := newRecordingHandler(2)
	pool := NewWorkerPool(broker, handler, logging.NewNop(), 2, time.Minute,
		WithPollInterval(20*time.Millisecond))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	waitFor(t, handler.done, 2)
	cancel()
	require.NoError(t, <-runDone)

	seen := handler.seen()
	assert.Len(t, seen, 2)

	stats, err := broker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestWorkerPoolInvokesFailureHook(t *testing.T) {
	broker, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, broker.Enqueue(ctx, NewSummarizeTask("job-x", "/uploads/job-x")))

	handler := newRecordingHandler(1)
	handler.errs[TaskSummarize] = errors.New("model returned garbage")

	var hookMu sync.Mutex
	var hookTask Task
	var hookErr error
	hookCalled := make(chan struct{}, 1)
	hook := func(ctx context.Context, task Task, taskErr error) error {
		hookMu.Lock()
		hookTask = task
		hookErr = taskErr
		hookMu.Unlock()
		hookCalled <- struct{}{}
		return nil
	}

	pool := NewWorkerPool(broker, handler, logging.NewNop(), 1, time.Minute,
		WithPollInterval(20*time.Millisecond),
		WithFailureHook(hook))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	waitFor(t, handler.done, 1)
	waitFor(t, hookCalled, 1)
	cancel()
	require.NoError(t, <-runDone)

	hookMu.Lock()
	defer hookMu.Unlock()
	assert.Equal(t, TaskSummarize, hookTask.Name)
	assert.Equal(t, "job-x", hookTask.JobID)
	require.Error(t, hookErr)
	assert.Contains(t, hookErr.Error(), "model returned garbage")

	// Failed tasks are settled, not retried.
	stats, err := broker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestWorkerPoolTimesOutLongTask(t *testing.T) {
	broker, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, broker.Enqueue(ctx, NewIngestTask("job-slow", "/uploads/job-slow/s.mp4")))

	handler := newRecordingHandler(1)
	handler.block = 5 * time.Second

	hookErrs := make(chan error, 1)
	hook := func(ctx context.Context, task Task, taskErr error) error {
		hookErrs <- taskErr
		return nil
	}

	pool := NewWorkerPool(broker, handler, logging.NewNop(), 1, 50*time.Millisecond,
		WithPollInterval(20*time.Millisecond),
		WithFailureHook(hook))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	var taskErr error
	select {
	case taskErr = <-hookErrs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure hook")
	}
	cancel()
	require.NoError(t, <-runDone)

	assert.True(t, errors.Is(taskErr, services.ErrTimeout), "expected timeout marker, got %v", taskErr)
}

func TestWorkerPoolRequeuesOnShutdown(t *testing.T) {
	broker, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, broker.Enqueue(ctx, NewIngestTask("job-a", "/uploads/job-a/a.mp4")))

	handler := newRecordingHandler(1)
	handler.block = 10 * time.Second

	hookCalled := false
	hook := func(ctx context.Context, task Task, taskErr error) error {
		hookCalled = true
		return nil
	}

	pool := NewWorkerPool(broker, handler, logging.NewNop(), 1, time.Minute,
		WithPollInterval(20*time.Millisecond),
		WithFailureHook(hook))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	// Let the worker pick the task up, then shut down mid-flight.
	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-runDone)

	stats, err := broker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending, "interrupted task should be requeued")
	assert.Equal(t, int64(0), stats.Processing)
	assert.False(t, hookCalled, "shutdown must not record a failure")
}

func TestWorkerPoolRunRecoversAbandonedTasks(t *testing.T) {
	broker, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Leave a task stranded on the processing list, as after a crash.
	require.NoError(t, broker.Enqueue(ctx, NewIngestTask("job-a", "/uploads/job-a/a.mp4")))
	res, err := broker.Reserve(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, res)

	handler := newRecordingHandler(1)
	pool := NewWorkerPool(broker, handler, logging.NewNop(), 1, time.Minute,
		WithPollInterval(20*time.Millisecond))

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	waitFor(t, handler.done, 1)
	cancel()
	require.NoError(t, <-runDone)

	seen := handler.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "job-a", seen[0].JobID)
}
