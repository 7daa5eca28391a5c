// Package queue runs background jobs.
//
// A job is any type that names itself and knows how to run:
//
//	type WelcomeEmail struct{ UserID uint }
//
//	func (WelcomeEmail) Name() string { return "mail.welcome" }
//	func (j WelcomeEmail) Handle(ctx context.Context) error { ... }
//
// Register a factory for every job name at boot, then dispatch:
//
//	q.Register("mail.welcome", func() queue.Job { return &WelcomeEmail{} })
//	q.Dispatch(ctx, WelcomeEmail{UserID: 1})
//
// A single fetch loop pulls serialized envelopes from the driver and
// fans them out to a bounded worker pool, so a flood of jobs never
// becomes a flood of goroutines. Failing jobs are retried with a
// per-attempt backoff; once retries are exhausted the failure is
// retained in memory and, when a database is attached, persisted.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/metrics"
	"github.com/setulabs/setu/pkg/workerpool"
)

// Job is the unit of background work.
type Job interface {
	// Name identifies the job type on the wire. It must match the name
	// the factory was registered under.
	Name() string
	// Handle executes the job. A non-nil error triggers a retry.
	Handle(ctx context.Context) error
}

// Driver moves serialized envelopes in and out of a backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
	// Pop blocks until an envelope is available, the driver's poll
	// window elapses (nil, nil), or ctx is done.
	Pop(ctx context.Context) ([]byte, error)
}

// starter is implemented by drivers that need a background loop, like
// the redis delayed-set promoter. The queue runs it for the lifetime
// of the worker context.
type starter interface {
	start(ctx context.Context)
}

type envelope struct {
	Job     string          `json:"job"`
	Payload json.RawMessage `json:"payload"`
}

// Queue dispatches and processes jobs through a Driver.
type Queue struct {
	driver  Driver
	pool    *workerpool.Pool
	workers int

	mu       sync.RWMutex
	registry map[string]func() Job
	failed   []FailedJob

	maxRetry int
	backoff  func(attempt int) time.Duration

	db *gorm.DB

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetry sets how many attempts a job gets before it is marked
// failed. Values below one are raised to one.
func WithMaxRetry(n int) Option {
	return func(q *Queue) {
		if n < 1 {
			n = 1
		}
		q.maxRetry = n
	}
}

// WithBackoff replaces the delay between attempts. The default waits
// attempt seconds.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(q *Queue) {
		if fn != nil {
			q.backoff = fn
		}
	}
}

// New builds a queue over driver with the given worker count.
func New(driver Driver, workers int, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		driver:   driver,
		workers:  workers,
		registry: make(map[string]func() Job),
		maxRetry: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register makes a job name constructible from the wire. Call once at
// boot for every job type the process handles.
func (q *Queue) Register(name string, factory func() Job) {
	q.mu.Lock()
	q.registry[name] = factory
	q.mu.Unlock()
}

// Dispatch pushes job onto the queue for immediate processing.
func (q *Queue) Dispatch(ctx context.Context, job Job) error {
	raw, err := seal(job)
	if err != nil {
		return err
	}
	if err := q.driver.Push(ctx, raw); err != nil {
		return err
	}
	metrics.JobsDispatched.WithLabelValues(job.Name()).Inc()
	return nil
}

// DispatchAfter pushes job onto the queue to run no earlier than delay
// from now.
func (q *Queue) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	if delay <= 0 {
		return q.Dispatch(ctx, job)
	}
	raw, err := seal(job)
	if err != nil {
		return err
	}
	if err := q.driver.PushDelayed(ctx, raw, delay); err != nil {
		return err
	}
	metrics.JobsDispatched.WithLabelValues(job.Name()).Inc()
	return nil
}

func seal(job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %q: %w", job.Name(), err)
	}
	raw, err := json.Marshal(envelope{Job: job.Name(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return raw, nil
}

// Start launches the fetch loop and worker pool. Jobs are processed
// until ctx is cancelled or Shutdown is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	q.pool = workerpool.New(q.workers)

	if s, ok := q.driver.(starter); ok {
		go s.start(ctx)
	}

	go q.fetch(ctx)
	logger.Info("queue: workers started", "workers", q.workers, "max_retry", q.maxRetry)
}

// Shutdown stops fetching, waits for in-flight jobs, and releases the
// workers. Safe to call once after Start.
func (q *Queue) Shutdown() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	<-q.done
	q.pool.Shutdown()
}

// fetch pulls envelopes off the driver and hands them to the pool.
// SubmitWait gives natural backpressure: when every worker is busy the
// loop stops pulling until one frees up.
func (q *Queue) fetch(ctx context.Context) {
	defer close(q.done)
	for {
		raw, err := q.driver.Pop(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("queue: pop failed", "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}

		if err := q.pool.SubmitWait(func() { q.process(ctx, raw) }); err != nil {
			return // pool closed
		}
	}
}

func (q *Queue) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		metrics.JobsProcessed.WithLabelValues("unknown", "dropped").Inc()
		return
	}

	q.mu.RLock()
	factory, ok := q.registry[env.Job]
	q.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job", "job", env.Job)
		metrics.JobsProcessed.WithLabelValues(env.Job, "dropped").Inc()
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "job", env.Job, "error", err)
		metrics.JobsProcessed.WithLabelValues(env.Job, "dropped").Inc()
		return
	}

	q.run(ctx, job, env)
}

func (q *Queue) run(ctx context.Context, job Job, env envelope) {
	var lastErr error
	for attempt := 1; attempt <= q.maxRetry; attempt++ {
		if err := job.Handle(ctx); err != nil {
			lastErr = err
			logger.Warn("queue: job failed",
				"job", env.Job, "attempt", attempt, "error", err)
			if attempt < q.maxRetry && !sleep(ctx, q.backoff(attempt)) {
				break // shutting down, count what we have
			}
			continue
		}
		logger.Info("queue: job processed", "job", env.Job, "attempts", attempt)
		metrics.JobsProcessed.WithLabelValues(env.Job, "ok").Inc()
		return
	}

	q.recordFailure(env, lastErr, q.maxRetry)
	metrics.JobsProcessed.WithLabelValues(env.Job, "failed").Inc()
	logger.Error("queue: job exhausted retries", "job", env.Job, "error", lastErr)
}

// sleep waits for d unless ctx ends first. Reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
