// Package proof issues proof-of-work challenges and scores the submissions
// the challenge page sends back.
//
// A challenge is a signed token minted by the token service, so nothing is
// stored until the client submits. Each submission earns up to three points:
// valid work at the embedded difficulty, a fingerprint consistent with the
// last one seen for the client, and plausible behaviour. Scores at or above
// the threshold pass. A submission flagged as fallback passes once the
// challenge is old enough, so a client can never be stuck on the page.
package proof

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linkgate/internal/models"
	"linkgate/internal/store"
	"linkgate/internal/token"
)

// Failure reasons reported in Verdict.Reason.
const (
	ReasonChallengeInvalid  = "challenge_invalid"
	ReasonChallengeReplayed = "challenge_replayed"
	ReasonFallbackTooEarly  = "fallback_too_early"
	ReasonLowScore          = "score_below_threshold"
)

// Challenge is handed to the challenge page.
type Challenge struct {
	Material   string
	Difficulty int
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Checks records which sub-checks earned a point.
type Checks struct {
	Work        bool
	Fingerprint bool
	Behaviour   bool
}

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Pass       bool
	Score      int
	Difficulty int
	Fallback   bool
	Checks     Checks
	Reason     string
}

// Engine issues and evaluates challenges.
type Engine struct {
	tokens *token.Service
	store  store.Store
	cfg    models.ProofConfig
	logger *slog.Logger
}

// NewEngine creates an Engine. The store holds consumed challenge nonces and
// the last fingerprint digest per client.
func NewEngine(tokens *token.Service, s store.Store, cfg models.ProofConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tokens: tokens, store: s, cfg: cfg, logger: logger}
}

// IssueChallenge mints a new challenge at the configured difficulty.
func (e *Engine) IssueChallenge(_ context.Context) (Challenge, error) {
	material, claims, err := e.tokens.Mint(token.KindChallenge, e.cfg.ChallengeTTL,
		&token.ProofMeta{Difficulty: e.cfg.Difficulty})
	if err != nil {
		return Challenge{}, fmt.Errorf("mint challenge: %w", err)
	}
	return Challenge{
		Material:   material,
		Difficulty: e.cfg.Difficulty,
		IssuedAt:   claims.IssuedAt,
		ExpiresAt:  claims.ExpiresAt,
	}, nil
}

// Evaluate verifies the challenge a submission answers, consumes it and
// scores the submission. Errors are reserved for store failures; a rejected
// submission is a Verdict with Pass unset.
func (e *Engine) Evaluate(ctx context.Context, clientID string, sub models.Submission) (Verdict, error) {
	claims, err := e.tokens.VerifyKind(sub.Challenge, token.KindChallenge)
	if err != nil {
		return Verdict{Reason: ReasonChallengeInvalid}, nil
	}

	now := e.tokens.Now()
	ttl := claims.ExpiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := e.store.PutIfAbsent(ctx, "ch:"+claims.Nonce, clientID, ttl)
	if err != nil {
		return Verdict{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !fresh {
		return Verdict{Reason: ReasonChallengeReplayed}, nil
	}

	difficulty := e.cfg.Difficulty
	if claims.Proof != nil && claims.Proof.Difficulty > 0 {
		difficulty = claims.Proof.Difficulty
	}
	v := Verdict{Difficulty: difficulty}

	if sub.Fallback {
		if now.Sub(claims.IssuedAt) < e.cfg.FallbackDelay {
			v.Reason = ReasonFallbackTooEarly
			return v, nil
		}
		v.Pass = true
		v.Fallback = true
		return v, nil
	}

	v.Checks.Work = VerifyWork(sub.Challenge, sub.Nonce, difficulty)
	v.Checks.Fingerprint, err = e.fingerprintConsistent(ctx, clientID, sub.Fingerprint)
	if err != nil {
		return Verdict{}, err
	}
	v.Checks.Behaviour = e.behaviourPlausible(sub)

	for _, ok := range []bool{v.Checks.Work, v.Checks.Fingerprint, v.Checks.Behaviour} {
		if ok {
			v.Score++
		}
	}
	v.Pass = v.Score >= e.cfg.Threshold
	if !v.Pass {
		v.Reason = ReasonLowScore
	}
	return v, nil
}

// fingerprintConsistent compares the reported signals with the digest last
// seen for the client. A first sighting is recorded and accepted. A change is
// a soft negative: no point, and the new digest replaces the old one.
func (e *Engine) fingerprintConsistent(ctx context.Context, clientID string, fp models.Fingerprint) (bool, error) {
	digest := FingerprintDigest(fp)
	if digest == "" {
		return false, nil
	}

	key := "fp:" + clientID
	previous, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := e.store.Set(ctx, key, digest, e.cfg.FingerprintTTL); err != nil {
			return false, fmt.Errorf("record fingerprint: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("load fingerprint: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(previous), []byte(digest)) == 1 {
		return true, nil
	}

	e.logger.Warn("Fingerprint changed for client", "client_id", clientID)
	if err := e.store.Set(ctx, key, digest, e.cfg.FingerprintTTL); err != nil {
		return false, fmt.Errorf("record fingerprint: %w", err)
	}
	return false, nil
}

func (e *Engine) behaviourPlausible(sub models.Submission) bool {
	if sub.Fingerprint.Webdriver {
		return false
	}
	if sub.Telemetry.PointerMoves == 0 && sub.Telemetry.TouchEvents == 0 {
		return false
	}
	return time.Duration(sub.Telemetry.TimeOnPageMS)*time.Millisecond >= e.cfg.MinTimeOnPage
}

// FingerprintDigest hashes the reported signals. It returns "" when the client
// reported nothing.
func FingerprintDigest(fp models.Fingerprint) string {
	if fp.CanvasSize == 0 && fp.HardwareConcurrency == 0 && fp.Timezone == "" && fp.Screen == "" {
		return ""
	}
	data := fmt.Sprintf("%d|%d|%s|%s", fp.CanvasSize, fp.HardwareConcurrency, fp.Timezone, fp.Screen)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
