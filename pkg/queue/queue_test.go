package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setulabs/setu/pkg/queue"
)

// ─── Job types ────────────────────────────────────────────────────────────────

type echoJob struct {
	Val  string `json:"val"`
	hits *atomic.Int32
}

func (*echoJob) Name() string { return "test.echo" }

func (j *echoJob) Handle(context.Context) error {
	if j.hits != nil {
		j.hits.Add(1)
	}
	return nil
}

type failJob struct {
	attempts *atomic.Int32
}

func (*failJob) Name() string { return "test.fail" }

func (j *failJob) Handle(context.Context) error {
	if j.attempts != nil {
		j.attempts.Add(1)
	}
	return errors.New("always fails")
}

type panicJob struct{}

func (panicJob) Name() string { return "test.panic" }

func (panicJob) Handle(context.Context) error { panic("job bug") }

// ─── Helpers ──────────────────────────────────────────────────────────────────

func noBackoff(int) time.Duration { return 0 }

func startQueue(t *testing.T, opts ...queue.Option) *queue.Queue {
	t.Helper()
	q := queue.New(queue.NewMemory(), 2, append([]queue.Option{queue.WithBackoff(noBackoff)}, opts...)...)
	q.Start(context.Background())
	t.Cleanup(q.Shutdown)
	return q
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	q := startQueue(t)

	var hits atomic.Int32
	q.Register("test.echo", func() queue.Job { return &echoJob{hits: &hits} })

	require.NoError(t, q.Dispatch(context.Background(), &echoJob{Val: "hello"}))

	require.Eventually(t, func() bool { return hits.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, q.FailedCount())
}

func TestRetriesThenRecordsFailure(t *testing.T) {
	q := startQueue(t, queue.WithMaxRetry(2))

	var attempts atomic.Int32
	q.Register("test.fail", func() queue.Job { return &failJob{attempts: &attempts} })

	require.NoError(t, q.Dispatch(context.Background(), &failJob{}))

	require.Eventually(t, func() bool { return q.FailedCount() == 1 },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(2), attempts.Load())

	failed := q.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "test.fail", failed[0].Job)
	assert.Equal(t, 2, failed[0].Attempts)
	assert.Contains(t, failed[0].Error, "always fails")
	assert.False(t, failed[0].FailedAt.IsZero())
}

func TestDispatchAfterRunsTheJobLater(t *testing.T) {
	q := startQueue(t)

	var hits atomic.Int32
	q.Register("test.echo", func() queue.Job { return &echoJob{hits: &hits} })

	start := time.Now()
	require.NoError(t, q.DispatchAfter(context.Background(), &echoJob{Val: "later"}, 30*time.Millisecond))

	require.Eventually(t, func() bool { return hits.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestUnregisteredJobIsDroppedNotFailed(t *testing.T) {
	q := startQueue(t)

	var hits atomic.Int32
	q.Register("test.echo", func() queue.Job { return &echoJob{hits: &hits} })

	// No factory for test.fail here; the worker must shrug it off and
	// keep processing.
	require.NoError(t, q.Dispatch(context.Background(), &failJob{}))
	require.NoError(t, q.Dispatch(context.Background(), &echoJob{}))

	require.Eventually(t, func() bool { return hits.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, q.FailedCount())
}

func TestPanickingJobDoesNotKillTheWorker(t *testing.T) {
	q := startQueue(t)

	var hits atomic.Int32
	q.Register("test.panic", func() queue.Job { return panicJob{} })
	q.Register("test.echo", func() queue.Job { return &echoJob{hits: &hits} })

	require.NoError(t, q.Dispatch(context.Background(), panicJob{}))
	require.NoError(t, q.Dispatch(context.Background(), &echoJob{}))

	require.Eventually(t, func() bool { return hits.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestShutdownWaitsForInFlightJob(t *testing.T) {
	q := queue.New(queue.NewMemory(), 1, queue.WithBackoff(noBackoff))
	q.Start(context.Background())

	var done atomic.Bool
	ready := make(chan struct{})
	q.Register("test.slow", func() queue.Job {
		return &hookJob{fn: func(context.Context) error {
			close(ready)
			time.Sleep(50 * time.Millisecond)
			done.Store(true)
			return nil
		}}
	})

	require.NoError(t, q.Dispatch(context.Background(), &hookJob{}))
	<-ready

	q.Shutdown()
	assert.True(t, done.Load(), "Shutdown returned before the job finished")
}

// hookJob lets a test inject arbitrary Handle behavior through the
// worker-side factory. The dispatched copy carries no state.
type hookJob struct {
	fn func(context.Context) error
}

func (*hookJob) Name() string { return "test.slow" }

func (j *hookJob) Handle(ctx context.Context) error {
	if j.fn == nil {
		return nil
	}
	return j.fn(ctx)
}
