package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"minutes/internal/api"
	"minutes/internal/config"
	"minutes/internal/deps"
	"minutes/internal/logging"
	"minutes/internal/notify"
	"minutes/internal/queue"
	"minutes/internal/worker"
)

// Daemon owns the background processing services and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *redis.Client
	broker   *queue.Broker
	pool     *queue.WorkerPool
	api      *api.Server
	notifier notify.Service

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	poolDone chan struct{}
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	QueueName    string
	QueueDepth   queue.Depth
	APIAddr      string
	LockFilePath string
}

// Option tunes daemon construction.
type Option func(*settings)

type settings struct {
	pollInterval time.Duration
}

// WithPollInterval adjusts how long idle workers block on the queue before
// re-checking for shutdown. Mainly for tests.
func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) {
		s.pollInterval = interval
	}
}

// New wires the full processing runtime from configuration: Redis broker,
// stage orchestrator, worker pool, and API server. The worker configuration
// is validated up front so a missing provider credential fails here rather
// than on the first transcription request.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	var tuning settings
	for _, opt := range opts {
		opt(&tuning)
	}

	client, err := queue.Connect(cfg.Queue.RedisURL)
	if err != nil {
		return nil, err
	}
	broker := queue.NewBroker(client, cfg.Queue.Name)
	notifier := notify.NewService(cfg)

	orchestrator, err := worker.New(cfg, broker, notifier, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	poolOpts := []queue.WorkerPoolOption{queue.WithFailureHook(orchestrator.HandleFailure)}
	if tuning.pollInterval > 0 {
		poolOpts = append(poolOpts, queue.WithPollInterval(tuning.pollInterval))
	}
	pool := queue.NewWorkerPool(
		broker,
		orchestrator,
		logger,
		cfg.Queue.WorkerCount,
		time.Duration(cfg.Queue.JobTimeoutSeconds)*time.Second,
		poolOpts...,
	)

	server, err := api.NewServer(cfg, broker, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "minutesd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		client:   client,
		broker:   broker,
		pool:     pool,
		api:      server,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, verifies external dependencies, and
// launches the worker pool and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another minutes daemon instance is already running")
	}

	if err := d.preflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.poolDone = make(chan struct{})
	go func() {
		defer close(d.poolDone)
		if err := d.pool.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("worker pool stopped", logging.Error(err))
		}
	}()

	if err := d.api.Start(d.ctx); err != nil {
		d.cancel()
		<-d.poolDone
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("minutes daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.api.Addr()),
		logging.String("queue", d.broker.Name()),
		logging.Int("workers", d.cfg.Queue.WorkerCount),
	)
	return nil
}

// preflight checks the binaries the pipeline shells out to and the queue
// connection. Returns nil when all checks pass, or an error naming every
// failure.
func (d *Daemon) preflight(ctx context.Context) error {
	var failures []string
	for _, status := range deps.Check(d.cfg) {
		if status.Available {
			d.logger.Info("dependency check passed",
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
			)
			continue
		}
		d.logger.Error("dependency check failed",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
		)
		if !status.Optional {
			failures = append(failures, fmt.Sprintf("%s: %s", status.Name, status.Detail))
		}
	}
	if err := checkUploadRoot(d.cfg.Paths.UploadDir); err != nil {
		d.logger.Error("upload root check failed",
			logging.String("path", d.cfg.Paths.UploadDir),
			logging.Error(err),
		)
		failures = append(failures, fmt.Sprintf("upload root: %v", err))
	} else {
		d.logger.Info("upload root check passed",
			logging.String("path", d.cfg.Paths.UploadDir),
		)
	}
	if len(failures) > 0 {
		return fmt.Errorf("dependency preflight failed: %s", strings.Join(failures, "; "))
	}

	if err := d.broker.Ping(ctx); err != nil {
		return fmt.Errorf("queue ping: %w", err)
	}
	return nil
}

// checkUploadRoot verifies the upload root is a directory this process can
// read, write, and traverse. EnsureDirectories creates it when missing, so a
// failure here means it exists with the wrong mode or owner.
func checkUploadRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions: %w", err)
	}
	return nil
}

// Stop shuts down the API server and worker pool and releases the instance
// lock. A task in flight is handed back to the queue for the next start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	if d.poolDone != nil {
		<-d.poolDone
		d.poolDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("minutes daemon stopped")
}

// Close stops the daemon and releases the queue connection.
func (d *Daemon) Close() error {
	d.Stop()
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// Status returns the current daemon status. Queue depth is best effort; a
// stats failure leaves it zero.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		QueueName:    d.broker.Name(),
		APIAddr:      d.api.Addr(),
		LockFilePath: d.lockPath,
	}
	depth, err := d.broker.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue depth", logging.Error(err))
		return status
	}
	status.QueueDepth = depth
	return status
}
