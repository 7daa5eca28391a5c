package logger

import (
	"context"
	"io"
	"log/slog"
)

// Fanout is an slog.Handler that forwards each record to every child
// handler. A record reaches a child only when that child's Enabled says
// so, which lets the console stay at debug while a remote sink accepts
// info and up. Child errors are ignored: one failing sink must not cost
// the others their record.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout returns a handler fanning out to hs. Nil entries are skipped.
func NewFanout(hs ...slog.Handler) *Fanout {
	handlers := make([]slog.Handler, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	return &Fanout{handlers: handlers}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: hs}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: hs}
}

// Close closes every child that is an io.Closer, flushing async sinks.
// Call it on shutdown.
func (f *Fanout) Close() error {
	var firstErr error
	for _, h := range f.handlers {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
