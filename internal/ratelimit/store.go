package ratelimit

import (
	"context"
	"fmt"
	"time"

	"linkgate/internal/store"
)

// StoreLimiter counts windows in a shared store so several gate instances
// enforce one limit per client.
type StoreLimiter struct {
	store  store.Store
	max    int
	length time.Duration
}

// NewStoreLimiter creates a limiter backed by s. The store is owned by the
// caller and is not closed by Close.
func NewStoreLimiter(s store.Store, maxRequests int, length time.Duration) *StoreLimiter {
	return &StoreLimiter{store: s, max: maxRequests, length: length}
}

// Admit counts a request from clientID.
func (l *StoreLimiter) Admit(ctx context.Context, clientID string) (Decision, error) {
	count, resetAt, err := l.store.Incr(ctx, "rl:"+clientID, l.length)
	if err != nil {
		return Decision{}, fmt.Errorf("count request: %w", err)
	}
	return Decision{
		Allowed: count <= int64(l.max),
		Count:   count,
		Limit:   l.max,
		ResetAt: resetAt,
	}, nil
}

func (l *StoreLimiter) Close() {}
