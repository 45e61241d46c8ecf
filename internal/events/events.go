// Package events delivers structured gate events to optional collaborators.
// Delivery is fire-and-forget: a failing collaborator never changes a
// response the gate already computed.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event names.
const (
	ClassifierRejected = "classifier_rejected"
	TokenIssued        = "token_issued"
	Redirect           = "redirect"
	RateLimited        = "rate_limited"
	ProofFailed        = "proof_failed"
)

// Event is one structured gate event.
type Event struct {
	Event     string    `json:"event"`
	ClientID  string    `json:"clientId"`
	UserAgent string    `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Notifier receives events. Notify must not block on slow collaborators.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// LogNotifier writes events through slog.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) {
	level := slog.LevelInfo
	switch e.Event {
	case ClassifierRejected, RateLimited, ProofFailed:
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "Gate event",
		"event", e.Event,
		"client_id", e.ClientID,
		"user_agent", e.UserAgent,
		"reason", e.Reason,
	)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}
