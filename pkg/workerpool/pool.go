// Package workerpool bounds the goroutines that run background work.
//
// The queue workers hand each job to a shared Pool, so a burst of
// dispatches never turns into a burst of goroutines. When every slot is
// taken, Submit reports ErrPoolFull and the caller chooses what to do
// with the backpressure.
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	if err := pool.Submit(task); errors.Is(err, workerpool.ErrPoolFull) {
//		// requeue, delay, or drop
//	}
package workerpool

import (
	"errors"
	"sync"

	"github.com/setulabs/setu/pkg/logger"
)

// ErrPoolFull is returned by Submit when all workers are busy and the
// task buffer is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit and SubmitWait after Shutdown.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool runs submitted tasks on a fixed set of worker goroutines.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closeCh chan struct{}
}

// New starts a pool with size workers. Sizes below one are raised to
// one. The task buffer holds twice the worker count so short bursts
// are absorbed before Submit starts rejecting.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues task without blocking. It returns ErrPoolFull when
// the buffer is at capacity and ErrPoolClosed after Shutdown.
func (p *Pool) Submit(task func()) error {
	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until a buffer slot frees up or the pool closes.
func (p *Pool) SubmitWait(task func()) error {
	select {
	case <-p.closeCh:
		return ErrPoolClosed
	case p.tasks <- task:
		return nil
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones to
// finish. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.closeCh)
		close(p.tasks)
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		run(task)
	}
}

// run shields the worker goroutine from a panicking task.
func run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker task panicked", "panic", r)
		}
	}()
	task()
}
