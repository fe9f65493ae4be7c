// Package background runs side effects that must outlive the request that
// scheduled them, such as cache warming.
//
// Tasks never see the scheduling request's cancellation. A Queue guarantees
// that every accepted task runs to completion (or to its timeout) before
// Close returns.
package background

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers     = 4
	DefaultQueueDepth  = 1024
	DefaultTaskTimeout = 10 * time.Second
)

// ErrQueueFull is reported to observers when a task is dropped.
var ErrQueueFull = errors.New("background: queue full")

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Scheduler accepts tasks without blocking the caller.
type Scheduler interface {
	Schedule(name string, task Task)
}

// Observer is told the outcome of every scheduled task. err is nil on
// success, ErrQueueFull when the task was dropped.
type Observer func(name string, err error)

type Config struct {
	Workers     int
	QueueDepth  int
	TaskTimeout time.Duration
	Logger      *zap.Logger
	Observer    Observer
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Observer == nil {
		c.Observer = func(string, error) {}
	}
}

type job struct {
	name string
	task Task
}

// Queue is a bounded pool of workers draining a task channel.
type Queue struct {
	cfg Config

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	group  *errgroup.Group
}

// NewQueue starts cfg.Workers workers.
func NewQueue(cfg Config) *Queue {
	cfg.defaults()
	q := &Queue{
		cfg:   cfg,
		jobs:  make(chan job, cfg.QueueDepth),
		group: new(errgroup.Group),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.group.Go(q.work)
	}
	return q
}

// Schedule enqueues task. When the queue is full or closed the task is
// dropped and logged; scheduled work is best-effort by contract.
func (q *Queue) Schedule(name string, task Task) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.cfg.Logger.Warn("background task dropped after close", zap.String("task", name))
		q.cfg.Observer(name, ErrQueueFull)
		return
	}
	select {
	case q.jobs <- job{name: name, task: task}:
	default:
		q.cfg.Logger.Warn("background task dropped, queue full", zap.String("task", name))
		q.cfg.Observer(name, ErrQueueFull)
	}
}

func (q *Queue) work() error {
	for j := range q.jobs {
		run(q.cfg, j)
	}
	return nil
}

// Close stops accepting tasks and waits for queued ones to finish, or for
// ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs each task synchronously inside Schedule, on a fresh context.
type Inline struct {
	cfg Config
}

func NewInline(cfg Config) *Inline {
	cfg.defaults()
	return &Inline{cfg: cfg}
}

func (in *Inline) Schedule(name string, task Task) {
	run(in.cfg, job{name: name, task: task})
}

func run(cfg Config, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			cfg.Logger.Error("background task panicked", zap.String("task", j.name), zap.Any("panic", r))
			cfg.Observer(j.name, errors.New("background: task panicked"))
		}
	}()

	err := j.task(ctx)
	if err != nil {
		cfg.Logger.Warn("background task failed", zap.String("task", j.name), zap.Error(err))
	}
	cfg.Observer(j.name, err)
}
