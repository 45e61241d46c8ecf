package gate

import (
	"net/http"

	"linkgate/internal/models"
	"linkgate/internal/proof"
)

// Kind identifies a terminal state of the gate.
type Kind int

const (
	KindError Kind = iota
	KindRateLimited
	KindDenied
	KindPreview
	KindRedirect
	KindRejected
	KindTokenIssued
	KindChallenge
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindDenied:
		return "denied"
	case KindPreview:
		return "preview"
	case KindRedirect:
		return "redirect"
	case KindRejected:
		return "rejected"
	case KindTokenIssued:
		return "token_issued"
	case KindChallenge:
		return "challenge"
	default:
		return "error"
	}
}

// Outcome is what the HTTP layer must send back. Only a redirect carries the
// destination, and only in Location. Reason is for logs and events.
type Outcome struct {
	Kind      Kind
	Location  string
	Cookie    *http.Cookie
	Token     *models.TokenResponse
	Challenge *models.ChallengeView
	Reason    string
}

// StatusCode maps the outcome to its HTTP status.
func (o Outcome) StatusCode() int {
	switch o.Kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDenied:
		return http.StatusNoContent
	case KindPreview, KindTokenIssued, KindChallenge:
		return http.StatusOK
	case KindRedirect:
		return http.StatusFound
	case KindRejected:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func challengeView(ch proof.Challenge, cfg models.Config) *models.ChallengeView {
	return &models.ChallengeView{
		Challenge:        ch.Material,
		Difficulty:       ch.Difficulty,
		TokenParam:       cfg.Gate.TokenParam,
		VerdictTimeoutMS: cfg.Proof.VerdictTimeout.Milliseconds(),
		FallbackDelayMS:  cfg.Proof.FallbackDelay.Milliseconds(),
	}
}
