package queue

import (
	"context"
	"errors"
	"time"
)

// Memory is a channel-backed driver for development and tests. Not
// durable across restarts.
type Memory struct {
	ch chan []byte
}

// NewMemory returns an in-process driver buffering up to 1000 jobs.
func NewMemory() *Memory {
	return &Memory{ch: make(chan []byte, 1000)}
}

func (d *Memory) Push(_ context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	default:
		return errors.New("queue/memory: buffer full")
	}
}

// PushDelayed parks the payload on a timer. The timer goroutine is the
// delayed-set equivalent of the redis driver, minus durability.
func (d *Memory) PushDelayed(_ context.Context, payload []byte, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		select {
		case d.ch <- payload:
		default: // full buffer drops the delayed job
		}
	})
	return nil
}

func (d *Memory) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}
