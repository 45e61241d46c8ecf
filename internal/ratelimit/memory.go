package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window holds the counter of a single client.
type window struct {
	start time.Time
	count int64
}

// MemoryLimiter is a process-local fixed-window limiter. Each unique client
// gets its own counter. A background goroutine periodically evicts windows
// that ended more than one cleanup interval ago.
type MemoryLimiter struct {
	max             int
	length          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
	closed  bool
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithNow overrides the clock.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

// NewMemoryLimiter creates a limiter admitting maxRequests per window. It starts
// a background goroutine for eviction when cleanupInterval is positive.
func NewMemoryLimiter(maxRequests int, length, cleanupInterval time.Duration, opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		max:             maxRequests,
		length:          length,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		windows:         make(map[string]*window),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if cleanupInterval > 0 {
		go m.cleanup()
	}
	return m
}

// Admit counts a request from clientID.
func (m *MemoryLimiter) Admit(_ context.Context, clientID string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	w, ok := m.windows[clientID]
	if !ok || now.Sub(w.start) > m.length {
		w = &window{start: now}
		m.windows[clientID] = w
	}
	w.count++
	count, start := w.count, w.start
	m.mu.Unlock()

	return Decision{
		Allowed: count <= int64(m.max),
		Count:   count,
		Limit:   m.max,
		ResetAt: start.Add(m.length),
	}, nil
}

// size returns the number of tracked clients.
func (m *MemoryLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Close stops the background cleanup goroutine.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

// evictStale removes windows that ended more than one cleanup interval ago.
func (m *MemoryLimiter) evictStale() {
	cutoff := m.now().Add(-m.length - m.cleanupInterval)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.windows {
		if w.start.Before(cutoff) {
			delete(m.windows, id)
		}
	}
}
