// Package jobs runs background work on a small in-memory worker pool with
// delayed retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCoalesced is returned by Enqueue when a job of the same type is already
// queued or running on a coalescing queue.
var ErrCoalesced = errors.New("job of this type already pending")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// Coalesce keeps at most one job per type queued, running or waiting
	// for a retry.
	Coalesce bool
	Logger   *zap.Logger
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

// Queue dispatches jobs to a fixed set of worker goroutines. It can be
// stopped and started again; jobs still pending at Stop are dropped.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	// lifecycle serialises Start and Stop.
	lifecycle sync.Mutex

	mu        sync.Mutex
	jobs      chan Job
	cancel    context.CancelFunc
	ctx       context.Context
	wg        sync.WaitGroup
	started   bool
	gen       uint64
	pending   map[string]int
	processed uint64
	failed    uint64
}

// NewQueue builds a stopped queue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		pending: make(map[string]int),
	}
}

// Start launches the workers. Starting a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.jobs = make(chan Job, q.cfg.BufferSize)
	q.pending = make(map[string]int)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(q.ctx, q.jobs, q.gen)
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for the running jobs to return. Jobs
// still buffered or waiting for a retry are dropped and no longer counted as
// pending.
func (q *Queue) Stop() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
	dropped := 0
	for _, n := range q.pending {
		dropped += n
	}
	q.pending = make(map[string]int)
	q.gen++
	q.mu.Unlock()
	q.logger.Info("queue stopped", zap.Int("dropped", dropped))
}

// Enqueue adds a job. It fails when the queue is stopped or, on a coalescing
// queue, with ErrCoalesced when the job type is already pending.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.cfg.Coalesce && q.pending[job.Type] > 0 {
		q.mu.Unlock()
		return ErrCoalesced
	}
	q.pending[job.Type]++
	ctx, jobs, gen := q.ctx, q.jobs, q.gen
	q.mu.Unlock()

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if err := q.push(ctx, jobs, job); err != nil {
		q.settle(job, false, gen)
		return err
	}
	return nil
}

// Stats reports pending jobs and totals since construction.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := 0
	for _, n := range q.pending {
		pending += n
	}
	return Stats{Pending: pending, Processed: q.processed, Failed: q.failed}
}

func (q *Queue) push(ctx context.Context, jobs chan<- Job, job Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, err)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case jobs <- job:
		return nil
	}
}

func (q *Queue) worker(ctx context.Context, jobs chan Job, gen uint64) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			err := q.handler(ctx, job)
			if err == nil {
				q.settle(job, true, gen)
				continue
			}
			q.retry(ctx, jobs, job, err, gen)
		}
	}
}

func (q *Queue) retry(ctx context.Context, jobs chan Job, job Job, err error, gen uint64) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries || ctx.Err() != nil {
		q.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
		q.settle(job, false, gen)
		return
	}
	q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))

	go func() {
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := q.push(ctx, jobs, job); err != nil {
				q.settle(job, false, gen)
			}
		}
	}()
}

// settle releases the pending slot of a finished job. Jobs from a run that
// has since been stopped are ignored; Stop already cleared their slots.
func (q *Queue) settle(job Job, ok bool, gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	if q.pending[job.Type] > 0 {
		q.pending[job.Type]--
	}
	if ok {
		q.processed++
	} else {
		q.failed++
	}
}

// Mux routes jobs to handlers by Job.Type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewMux returns an empty router.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for jobType, replacing any previous handler.
func (m *Mux) Handle(jobType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = h
}

// Dispatch is a Handler that forwards to the handler registered for the job type.
func (m *Mux) Dispatch(ctx context.Context, job Job) error {
	m.mu.RLock()
	h, ok := m.handlers[job.Type]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	return h(ctx, job)
}
