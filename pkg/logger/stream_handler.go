package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamQueueSize    = 1024
	streamWriteTimeout = 5 * time.Second
)

// streamFrame is the JSON shape pushed over the socket.
type streamFrame struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	RequestID string         `json:"request_id,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// StreamHandler is an slog.Handler that pushes JSON log frames over a
// websocket connection, letting an operator tail the process live. Like
// the Mongo sink it is asynchronous: Handle enqueues without blocking and
// a single writer goroutine owns the connection. Frames are dropped when
// the queue is full or the peer stops reading fast enough.
type StreamHandler struct {
	conn      *websocket.Conn
	queue     chan streamFrame
	done      chan struct{}
	drained   chan struct{}
	closeOnce *sync.Once
	attrs     []slog.Attr
}

// NewStreamHandler dials url (ws:// or wss://) and returns a connected
// handler. The caller must eventually call Close.
func NewStreamHandler(url string) (*StreamHandler, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("stream_handler: dial %s: %w", url, err)
	}

	h := &StreamHandler{
		conn:      conn,
		queue:     make(chan streamFrame, streamQueueSize),
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
		closeOnce: &sync.Once{},
	}
	go h.writeLoop()
	return h, nil
}

func (h *StreamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *StreamHandler) Handle(_ context.Context, r slog.Record) error {
	frame := streamFrame{
		Time:  r.Time,
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: map[string]any{},
	}

	collect := func(a slog.Attr) {
		if a.Key == "request_id" {
			frame.RequestID = a.Value.String()
			return
		}
		frame.Attrs[a.Key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	select {
	case h.queue <- frame:
	default:
	}
	return nil
}

func (h *StreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	clone := *h
	clone.attrs = merged
	return &clone
}

func (h *StreamHandler) WithGroup(string) slog.Handler { return h }

// writeLoop is the sole writer on the connection, which is what
// gorilla/websocket requires.
func (h *StreamHandler) writeLoop() {
	defer close(h.drained)

	write := func(frame streamFrame) {
		_ = h.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		_ = h.conn.WriteJSON(frame)
	}

	for {
		select {
		case frame := <-h.queue:
			write(frame)
		case <-h.done:
			for {
				select {
				case frame := <-h.queue:
					write(frame)
				default:
					_ = h.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(time.Second))
					return
				}
			}
		}
	}
}

// Close flushes queued frames, sends a close frame, and tears the
// connection down. Safe to call more than once.
func (h *StreamHandler) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.drained
	return h.conn.Close()
}
