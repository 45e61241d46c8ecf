// Package store keeps the gate's short-lived shared state: fixed-window
// counters, single-use nonces and fingerprint records. Every entry carries
// its own expiry; nothing outlives it.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store abstracts the backends. Implementations must be safe for concurrent use.
type Store interface {
	// Incr increments the counter under key. When the key is absent or its
	// window has elapsed a new window of the given length starts with count 1.
	// It returns the count after the increment and when the window ends.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// PutIfAbsent stores value under key for ttl unless a live entry exists.
	// It reports whether the value was stored.
	PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the live value under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key for ttl, replacing any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources and stops background sweeps.
	Close() error
}
