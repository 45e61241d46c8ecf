// Package models - Gate request types and input validation.
// This file defines the per-request descriptor and the proof submission body.
//
// Validation Philosophy:
// - The descriptor is built once at request entry and never mutated afterwards
// - Platform metadata is best effort: absent fields are empty, never guessed
// - Submission values are bounded so a hostile client cannot inflate state
package models

import (
	"errors"
	"strings"
)

// Descriptor is the read-only view of one inbound request.
//
// Lifecycle:
// - Constructed by the HTTP layer at request entry
// - Passed by value through classifier, limiter and gate
// - Discarded when the response is written
//
// ASN and Country are empty when neither the platform nor a GeoIP lookup
// could supply them.
type Descriptor struct {
	ClientID   string            `json:"client_id"`  // First-hop client network identifier
	UserAgent  string            `json:"user_agent"` // Declared User-Agent
	Method     string            `json:"method"`     // HTTP method
	Path       string            `json:"path"`       // Request path
	Query      map[string]string `json:"query"`      // First value of each query parameter
	Cookie     string            `json:"-"`          // Raw Cookie header
	ASN        string            `json:"asn,omitempty"`
	Country    string            `json:"country,omitempty"`
	Submission *Submission       `json:"-"` // Parsed JSON body of a POST, if any
	BadBody    bool              `json:"-"` // POST body could not be decoded
}

// QueryValue returns the value of a query parameter, or "" when absent.
func (d Descriptor) QueryValue(name string) string {
	if d.Query == nil {
		return ""
	}
	return d.Query[name]
}

// Submission is the body the challenge page POSTs back after solving or
// giving up on the proof of work.
type Submission struct {
	Challenge   string      `json:"challenge"`
	Nonce       string      `json:"nonce"`
	Fallback    bool        `json:"fallback"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Telemetry   Telemetry   `json:"telemetry"`
}

// Fingerprint carries client-derived signals. They are only compared with
// earlier reports from the same client, never interpreted as identity.
type Fingerprint struct {
	CanvasSize          int    `json:"canvas_size"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	Timezone            string `json:"timezone"`
	Screen              string `json:"screen"`
	Webdriver           bool   `json:"webdriver"`
}

// Telemetry carries short behavioural counters collected while the page was open.
type Telemetry struct {
	TimeOnPageMS int64 `json:"time_on_page_ms"`
	PointerMoves int   `json:"pointer_moves"`
	TouchEvents  int   `json:"touch_events"`
}

const (
	maxChallengeLength = 2048
	maxNonceLength     = 64
	maxSignalLength    = 64
)

// Validate rejects submissions that are structurally unusable.
func (s *Submission) Validate() error {
	if s.Challenge == "" {
		return errors.New("challenge is required")
	}
	if len(s.Challenge) > maxChallengeLength {
		return errors.New("challenge is too long")
	}
	if !s.Fallback && s.Nonce == "" {
		return errors.New("nonce is required")
	}
	if len(s.Nonce) > maxNonceLength {
		return errors.New("nonce is too long")
	}
	if len(s.Fingerprint.Timezone) > maxSignalLength || len(s.Fingerprint.Screen) > maxSignalLength {
		return errors.New("fingerprint signal is too long")
	}
	if s.Telemetry.TimeOnPageMS < 0 || s.Telemetry.PointerMoves < 0 || s.Telemetry.TouchEvents < 0 {
		return errors.New("telemetry counters cannot be negative")
	}
	return nil
}

// Normalize trims free-form fingerprint fields.
func (s *Submission) Normalize() {
	s.Nonce = strings.TrimSpace(s.Nonce)
	s.Fingerprint.Timezone = strings.TrimSpace(s.Fingerprint.Timezone)
	s.Fingerprint.Screen = strings.TrimSpace(s.Fingerprint.Screen)
}
