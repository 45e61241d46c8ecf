package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	count     int64
	expiresAt time.Time
}

// expired reports whether the entry's window or TTL has passed. An entry is
// still live at exactly its expiry instant.
func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is a process-local Store. Expired entries are ignored on read
// and purged by a background sweep every sweepInterval.
type MemoryStore struct {
	now           func() time.Time
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[string]*memoryEntry
	done    chan struct{}
	closed  bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryNow overrides the clock.
func WithMemoryNow(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an in-memory store and starts its sweep goroutine.
func NewMemoryStore(sweepInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		now:           time.Now,
		sweepInterval: sweepInterval,
		entries:       make(map[string]*memoryEntry),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweepInterval > 0 {
		go m.sweep()
	}
	return m
}

func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		e = &memoryEntry{count: 1, expiresAt: now.Add(window)}
		m.entries[key] = e
		return e.count, e.expiresAt, nil
	}

	e.count++
	return e.count, e.expiresAt, nil
}

func (m *MemoryStore) PutIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	m.entries[key] = &memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// size returns the number of entries currently held, live or not yet swept.
func (m *MemoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
}
