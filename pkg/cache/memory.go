package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/setulabs/setu/pkg/metrics"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// Memory is an in-process Store for local development and tests where
// Redis is overkill. Expired entries are dropped lazily on read; there is
// no janitor goroutine.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem)}
}

func (m *Memory) Driver() string { return "memory" }

func (m *Memory) Get(key string, dest any) bool {
	now := time.Now()

	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if ok && item.expired(now) {
		m.mu.Lock()
		if current, still := m.items[key]; still && current.expired(now) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		ok = false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(m.Driver()).Inc()
		return false
	}

	if err := json.Unmarshal(item.data, dest); err != nil {
		metrics.CacheMisses.WithLabelValues(m.Driver()).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(m.Driver()).Inc()
	return true
}

func (m *Memory) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.items, key)
	}
	m.mu.Unlock()
	return nil
}
