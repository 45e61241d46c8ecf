// Package session lets a client that already passed skip the challenge for a
// bounded period. The marker is a self-contained signed session token held in
// a cookie, so the server keeps no per-session state and rotating the signing
// key revokes every marker at once.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"linkgate/internal/models"
	"linkgate/internal/token"
)

// Status is the result of Recall.
type Status int

const (
	StatusAbsent Status = iota
	StatusValid
	StatusExpired
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	case StatusInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Memory issues and recalls session markers.
type Memory struct {
	tokens *token.Service
	cfg    models.SessionConfig
}

// New creates a Memory backed by the token service.
func New(tokens *token.Service, cfg models.SessionConfig) *Memory {
	return &Memory{tokens: tokens, cfg: cfg}
}

// Remember mints a fresh marker and returns the cookie carrying it.
func (m *Memory) Remember(_ context.Context) (*http.Cookie, error) {
	tok, _, err := m.tokens.Mint(token.KindSession, m.cfg.TTL, nil)
	if err != nil {
		return nil, fmt.Errorf("mint session marker: %w", err)
	}
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
	}, nil
}

// Recall inspects a raw Cookie header for a marker.
func (m *Memory) Recall(cookieHeader string) Status {
	if cookieHeader == "" {
		return StatusAbsent
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return StatusAbsent
	}

	var value string
	for _, c := range cookies {
		if c.Name == m.cfg.CookieName {
			value = c.Value
			break
		}
	}
	if value == "" {
		return StatusAbsent
	}

	_, err = m.tokens.VerifyKind(value, token.KindSession)
	switch {
	case err == nil:
		return StatusValid
	case errors.Is(err, token.ErrExpired):
		return StatusExpired
	default:
		return StatusInvalid
	}
}
