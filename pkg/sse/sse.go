// Package sse broadcasts server events to browsers over Server-Sent
// Events.
//
// A Feed is a fan-out hub: Publish delivers an event to every
// connected client, and Handler turns an HTTP request into a
// subscription that stays open until the client goes away. The kernel
// mounts a Feed on the admin surface and republishes bus events onto
// it, which gives operators a live view of the process.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event is one named payload on the feed.
type Event struct {
	Name string
	Data any
}

// subscriber channels are buffered; a client that cannot keep up loses
// events instead of stalling Publish.
const subscriberBuffer = 16

// Feed is a broadcast hub for server-sent events.
type Feed struct {
	mu        sync.Mutex
	subs      map[chan Event]struct{}
	closed    bool
	heartbeat time.Duration
}

// Option configures a Feed.
type Option func(*Feed)

// WithHeartbeat sets how often idle connections receive a keepalive
// comment. The default is 15 seconds.
func WithHeartbeat(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.heartbeat = d
		}
	}
}

// NewFeed returns an empty feed ready for subscribers.
func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		subs:      make(map[chan Event]struct{}),
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish fans the event out to every subscriber. Slow subscribers
// drop events rather than block the publisher.
func (f *Feed) Publish(name string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for ch := range f.subs {
		select {
		case ch <- Event{Name: name, Data: data}:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned cancel function
// must be called when the listener is done.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports how many clients are currently connected.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close disconnects every subscriber. Publish becomes a no-op.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

// Handler streams the feed to one HTTP client until it disconnects or
// the feed closes.
func (f *Feed) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

		events, cancel := f.Subscribe()
		defer cancel()

		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		keepalive := time.NewTicker(f.heartbeat)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(ev.Data)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
				flusher.Flush()
			case <-keepalive.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
