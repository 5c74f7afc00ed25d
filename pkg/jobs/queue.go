package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrNotRunning is returned when a job is pushed before Start.
	ErrNotRunning = errors.New("queue not running")
)

const (
	defaultMaxRetries    = 3
	defaultRetryDelay    = time.Second
	defaultMaxRetryDelay = 30 * time.Second
)

// Job is one unit of background work. Attempt counts the failed runs so far.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// DeadHandler is told about jobs that will not be retried again.
type DeadHandler func(Job, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// QueueConfig configures the worker pool. MaxRetries of zero means the
// default of 3; a negative value disables retries. Retry delays double per
// attempt up to MaxRetryDelay.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
	OnDead        DeadHandler
}

func (cfg QueueConfig) withDefaults() QueueConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = defaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
		if cfg.MaxRetryDelay < cfg.RetryDelay {
			cfg.MaxRetryDelay = cfg.RetryDelay
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Queue dispatches jobs to a fixed set of goroutines and re-queues failures
// with exponential backoff. It holds no state across process restarts.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger
	jobs    chan Job

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	workers sync.WaitGroup
	retries sync.WaitGroup
}

// NewQueue builds a stopped queue. Call Start before pushing jobs.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops, including after Stop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.workers.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.work(q.ctx)
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and pending retries and waits for them. Jobs still
// buffered are dropped.
func (q *Queue) Stop() {
	q.mu.RLock()
	cancel := q.cancel
	q.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	q.workers.Wait()
	q.retries.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.jobs)))
}

// Enqueue pushes job, waiting for buffer space.
func (q *Queue) Enqueue(job Job) error {
	return q.push(job, true)
}

// TryEnqueue pushes job or fails with ErrQueueFull when the buffer is full.
func (q *Queue) TryEnqueue(job Job) error {
	return q.push(job, false)
}

// Pending returns the number of jobs waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) push(job Job, wait bool) error {
	q.mu.RLock()
	ctx := q.ctx
	q.mu.RUnlock()

	if ctx == nil {
		return fmt.Errorf("queue %s: %w", q.name, ErrNotRunning)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, err)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	if !wait {
		select {
		case q.jobs <- job:
			return nil
		default:
			return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
		}
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.run(ctx, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, job Job) {
	err := q.invoke(ctx, job)
	if err == nil {
		return
	}

	job.Attempt++
	log := q.logger.With(zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt))
	switch {
	case IsPermanent(err):
		log.Error("job failed permanently", zap.Error(err))
		q.dead(job, err)
	case job.Attempt > q.cfg.MaxRetries:
		log.Error("job exhausted retries", zap.Error(err))
		q.dead(job, err)
	default:
		delay := q.backoff(job.Attempt)
		log.Warn("job failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		q.retry(ctx, job, delay)
	}
}

// invoke runs the handler, turning a panic into a permanent failure so one
// bad job cannot take a worker down.
func (q *Queue) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job panicked: %v", r))
		}
	}()
	return q.handler(ctx, job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxRetryDelay || delay <= 0 {
			return q.cfg.MaxRetryDelay
		}
	}
	return delay
}

func (q *Queue) retry(ctx context.Context, job Job, delay time.Duration) {
	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := q.push(job, true); err != nil {
			q.logger.Error("failed to requeue job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
}

func (q *Queue) dead(job Job, err error) {
	if q.cfg.OnDead != nil {
		q.cfg.OnDead(job, err)
	}
}
