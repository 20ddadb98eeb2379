package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultName is the queue name used when the configuration leaves it empty.
const DefaultName = "minutes"

// Connect parses a redis:// URL and returns a client for it. The caller owns
// the client and should Close it on shutdown.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Broker enqueues and reserves tasks on a named Redis queue.
//
// Pending tasks live on <name>:pending; a reserve atomically moves the head
// onto <name>:processing where it stays until the worker settles it. Payloads
// carry a unique task ID, so settling by exact payload is unambiguous.
type Broker struct {
	client redis.UniversalClient
	name   string
}

// NewBroker wraps an existing Redis client. The name falls back to
// DefaultName when blank.
func NewBroker(client redis.UniversalClient, name string) *Broker {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	return &Broker{client: client, name: name}
}

// Name returns the queue name the broker operates on.
func (b *Broker) Name() string { return b.name }

func (b *Broker) pendingKey() string {
	return fmt.Sprintf("%s:pending", b.name)
}

func (b *Broker) processingKey() string {
	return fmt.Sprintf("%s:processing", b.name)
}

// Enqueue appends a task to the pending list. A missing task ID or enqueue
// timestamp is filled in before the payload is written.
func (b *Broker) Enqueue(ctx context.Context, task Task) error {
	if strings.TrimSpace(task.JobID) == "" {
		return errors.New("enqueue: task job id must not be empty")
	}
	if _, ok := ParseTaskName(string(task.Name)); !ok {
		return fmt.Errorf("enqueue: unknown task name %q", task.Name)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := b.client.RPush(ctx, b.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("redis rpush failed: %w", err)
	}
	return nil
}

// Reservation pairs a decoded task with the raw payload needed to settle it.
type Reservation struct {
	Task Task
	raw  string
}

// Reserve blocks up to wait for the next pending task and moves it onto the
// processing list. It returns (nil, nil) when the wait elapses with nothing
// to do. A payload that cannot be decoded is dropped from the processing
// list and reported as an error.
func (b *Broker) Reserve(ctx context.Context, wait time.Duration) (*Reservation, error) {
	raw, err := b.client.BLMove(ctx, b.pendingKey(), b.processingKey(), "LEFT", "RIGHT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis blmove failed: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Poison payload: settle it so it cannot wedge the queue.
		_ = b.client.LRem(ctx, b.processingKey(), 1, raw).Err()
		return nil, fmt.Errorf("decode task payload: %w", err)
	}
	return &Reservation{Task: task, raw: raw}, nil
}

// Ack removes a reserved task from the processing list.
func (b *Broker) Ack(ctx context.Context, res *Reservation) error {
	if res == nil {
		return errors.New("ack: nil reservation")
	}
	if err := b.client.LRem(ctx, b.processingKey(), 1, res.raw).Err(); err != nil {
		return fmt.Errorf("redis lrem failed: %w", err)
	}
	return nil
}

// Requeue returns a reserved task to the front of the pending list so it is
// redelivered before newer work.
func (b *Broker) Requeue(ctx context.Context, res *Reservation) error {
	if res == nil {
		return errors.New("requeue: nil reservation")
	}
	pipe := b.client.TxPipeline()
	pipe.LRem(ctx, b.processingKey(), 1, res.raw)
	pipe.LPush(ctx, b.pendingKey(), res.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Recover sweeps tasks abandoned on the processing list back onto the
// pending list. Call it once at startup, before workers begin reserving,
// so work orphaned by a crash is redelivered. Moving from the processing
// tail to the pending head keeps the original delivery order.
func (b *Broker) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := b.client.LMove(ctx, b.processingKey(), b.pendingKey(), "RIGHT", "LEFT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, fmt.Errorf("redis lmove failed: %w", err)
		}
		moved++
	}
}

// Stats reports the current pending and processing list lengths.
func (b *Broker) Stats(ctx context.Context) (Depth, error) {
	pipe := b.client.Pipeline()
	pendingCmd := pipe.LLen(ctx, b.pendingKey())
	processingCmd := pipe.LLen(ctx, b.processingKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("redis pipeline failed: %w", err)
	}
	return Depth{
		Pending:    pendingCmd.Val(),
		Processing: processingCmd.Val(),
	}, nil
}

// Ping verifies the Redis connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
