// Package models - Gate response types.
// This file defines the few JSON bodies the gate ever emits.
//
// Response Design Principles:
// - Rejections carry no detail that would help calibrate evasion
// - The destination URL never appears in any body
// - RFC3339 timestamps for health reporting
package models

import (
	"time"
)

// ErrorResponse is the only error body the gate writes. Message is one of a
// small set of fixed strings.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Fixed client-facing error messages.
const (
	MessageInvalidOrExpired = "invalid or expired"
	MessageInternalError    = "internal error"
)

// TokenResponse is returned to a client whose proof submission passed.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // Seconds until the token stops verifying
	Param     string `json:"param"`      // Query parameter the token must be sent in
}

// ChallengeView is the data rendered into the challenge page. It must never
// carry the destination.
type ChallengeView struct {
	Challenge        string
	Difficulty       int
	TokenParam       string
	VerdictTimeoutMS int64
	FallbackDelayMS  int64
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if status == StatusUnhealthy {
		h.Status = StatusUnhealthy
	} else if status == StatusDegraded && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}
