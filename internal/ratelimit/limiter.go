// Package ratelimit damps abusive clients with a fixed-window request counter
// per client identifier. The window is deliberately coarse: a client may see up
// to twice the limit across a window boundary.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the admission contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Admit counts one request for clientID and reports whether it fits in
	// the current window. A denied request stays counted.
	Admit(ctx context.Context, clientID string) (Decision, error)

	// Close stops background goroutines and releases resources.
	Close()
}

// Decision describes the window state after a request was counted.
type Decision struct {
	Allowed bool
	Count   int64     // Requests seen in the current window, this one included
	Limit   int       // Maximum requests per window
	ResetAt time.Time // When the current window ends
}
