package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"minutes/internal/logging"
	"minutes/internal/services"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultTaskTimeout  = 15 * time.Minute
)

// Handler processes one reserved task.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task Task) error

// Handle calls fn.
func (fn HandlerFunc) Handle(ctx context.Context, task Task) error {
	return fn(ctx, task)
}

// FailureHook runs after a handler returns an error or the stage timeout
// fires, before the task is settled. Implementations record the job failure
// marker; hook errors are logged, never propagated.
type FailureHook func(ctx context.Context, task Task, taskErr error) error

// WorkerPool drains the queue with a fixed number of workers. Each worker
// reserves one task at a time, so a stage can never run concurrently with
// another stage of the same job.
type WorkerPool struct {
	broker       *Broker
	handler      Handler
	logger       *slog.Logger
	count        int
	taskTimeout  time.Duration
	pollInterval time.Duration
	onFailure    FailureHook
}

// WorkerPoolOption customizes a WorkerPool.
type WorkerPoolOption func(*WorkerPool)

// WithPollInterval adjusts how long a reserve blocks before re-checking for
// shutdown. Mainly for tests.
func WithPollInterval(interval time.Duration) WorkerPoolOption {
	return func(p *WorkerPool) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithFailureHook installs the failure handler invoked for failed tasks.
func WithFailureHook(hook FailureHook) WorkerPoolOption {
	return func(p *WorkerPool) {
		p.onFailure = hook
	}
}

// NewWorkerPool builds a pool of count workers dispatching to handler.
// A non-positive count falls back to a single worker; a non-positive task
// timeout falls back to the carried default.
func NewWorkerPool(broker *Broker, handler Handler, logger *slog.Logger, count int, taskTimeout time.Duration, opts ...WorkerPoolOption) *WorkerPool {
	if count <= 0 {
		count = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pool := &WorkerPool{
		broker:       broker,
		handler:      handler,
		logger:       logging.NewComponentLogger(logger, "worker"),
		count:        count,
		taskTimeout:  taskTimeout,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Run recovers abandoned work and blocks draining the queue until ctx is
// cancelled. A task in flight at shutdown is requeued for the next start.
func (p *WorkerPool) Run(ctx context.Context) error {
	recovered, err := p.broker.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		p.logger.Info("recovered abandoned tasks", logging.Int("count", recovered))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.count; i++ {
		worker := i + 1
		g.Go(func() error {
			p.runWorker(gctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) {
	logger := p.logger.With(logging.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.broker.Reserve(ctx, p.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to reserve next task", logging.Error(err))
			p.waitOrShutdown(ctx)
			continue
		}
		if res == nil {
			continue
		}

		p.process(ctx, logger, res)
	}
}

func (p *WorkerPool) process(ctx context.Context, logger *slog.Logger, res *Reservation) {
	task := res.Task
	taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()
	taskCtx = services.WithJobID(taskCtx, task.JobID)

	logger = logger.With(
		logging.String(logging.FieldJobID, task.JobID),
		logging.String("task", string(task.Name)),
	)
	logger.Info("task started")
	started := time.Now()

	err := p.handler.Handle(taskCtx, task)
	duration := time.Since(started)

	settleCtx := context.WithoutCancel(ctx)
	if ctx.Err() != nil {
		// Daemon shutdown: hand the task back for redelivery instead of
		// recording a spurious failure.
		logger.Info("task interrupted by shutdown, requeueing",
			logging.Duration("task_duration", duration))
		if requeueErr := p.broker.Requeue(settleCtx, res); requeueErr != nil {
			logger.Error("failed to requeue task", logging.Error(requeueErr))
		}
		return
	}

	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, string(task.Name), "execute",
				"stage timed out after "+p.taskTimeout.String(), err)
		}
		logger.Error("task failed",
			logging.Error(err),
			logging.Duration("task_duration", duration))
		if p.onFailure != nil {
			if hookErr := p.onFailure(settleCtx, task, err); hookErr != nil {
				logger.Error("failure hook failed", logging.Error(hookErr))
			}
		}
	} else {
		logger.Info("task completed", logging.Duration("task_duration", duration))
	}

	if ackErr := p.broker.Ack(settleCtx, res); ackErr != nil {
		logger.Error("failed to ack task", logging.Error(ackErr))
	}
}

func (p *WorkerPool) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}
