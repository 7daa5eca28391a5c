// Package event is a small in-process pub/sub bus. Services publish
// domain events ("user.created"); the kernel subscribes the listeners
// that fan them out to background jobs and the live ops feed.
package event

import (
	"sync"

	"github.com/setulabs/setu/pkg/logger"
)

// Handler receives the payload that was published with an event.
type Handler func(payload any)

// AllHandler receives every event on the bus along with its name.
type AllHandler func(name string, payload any)

// Bus routes published events to their subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []AllHandler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus, built on first use.
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = NewBus() })
	return defaultBus
}

// Subscribe registers h for the named event. Subscribing during a
// Publish is safe; the new handler sees the next event.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// SubscribeAll registers h for every event published on the bus,
// regardless of name. Wildcard subscribers run after the named ones.
func (b *Bus) SubscribeAll(h AllHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.all = append(b.all, h)
	b.mu.Unlock()
}

// Publish delivers payload to every subscriber of name, in subscription
// order, on the caller's goroutine. A panicking subscriber is logged and
// skipped; the rest still run.
func (b *Bus) Publish(name string, payload any) {
	named, all := b.snapshot(name)
	for _, h := range named {
		b.invoke(name, h, payload)
	}
	for _, h := range all {
		h := h
		b.invoke(name, func(p any) { h(name, p) }, payload)
	}
}

// PublishAsync delivers payload to every subscriber on its own
// goroutine and returns immediately.
func (b *Bus) PublishAsync(name string, payload any) {
	named, all := b.snapshot(name)
	for _, h := range named {
		h := h
		go b.invoke(name, h, payload)
	}
	for _, h := range all {
		h := h
		go b.invoke(name, func(p any) { h(name, p) }, payload)
	}
}

// Flush drops all subscriptions. Test affordance.
func (b *Bus) Flush() {
	b.mu.Lock()
	b.handlers = make(map[string][]Handler)
	b.all = nil
	b.mu.Unlock()
}

func (b *Bus) snapshot(name string) ([]Handler, []AllHandler) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hs := make([]Handler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	as := make([]AllHandler, len(b.all))
	copy(as, b.all)
	return hs, as
}

func (b *Bus) invoke(name string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked", "event", name, "panic", r)
		}
	}()
	h(payload)
}
