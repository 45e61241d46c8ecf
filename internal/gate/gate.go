// Package gate orchestrates one request through the gate:
//
//	START -> RATE_CHECKED -> CLASSIFIED -> SESSION_VALID -> REDIRECT
//	                                    -> CHALLENGE_ISSUED
//	                                    -> PROOF_VERIFIED -> REDIRECT
//	                                    -> REJECTED
//
// Every failure branch ends here as an Outcome; nothing escapes to the HTTP
// layer as an error.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"linkgate/internal/classifier"
	"linkgate/internal/events"
	"linkgate/internal/models"
	"linkgate/internal/proof"
	"linkgate/internal/ratelimit"
	"linkgate/internal/session"
	"linkgate/internal/store"
	"linkgate/internal/token"
)

// Classifier is the static request check.
type Classifier interface {
	Classify(models.Descriptor) classifier.Verdict
}

// Recorder receives decision metrics.
type Recorder interface {
	RecordDecision(ctx context.Context, outcome string)
	RecordScore(ctx context.Context, score int, fallback bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(context.Context, string) {}
func (nopRecorder) RecordScore(context.Context, int, bool) {}

// Service runs the gate state machine.
type Service struct {
	cfg        models.Config
	limiter    ratelimit.Limiter
	classifier Classifier
	engine     *proof.Engine
	tokens     *token.Service
	sessions   *session.Memory
	store      store.Store
	notifier   events.Notifier
	metrics    Recorder
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter enables rate limiting. Without it every request is admitted.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithNotifier sets the event collaborator.
func WithNotifier(n events.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the gate. The store is used for single-use pass nonces and
// must be the one the proof engine uses when several instances share state.
func NewService(cfg models.Config, c Classifier, engine *proof.Engine, tokens *token.Service,
	sessions *session.Memory, s store.Store, opts ...Option) *Service {
	svc := &Service{
		cfg:        cfg,
		classifier: c,
		engine:     engine,
		tokens:     tokens,
		sessions:   sessions,
		store:      s,
		notifier:   events.Nop{},
		metrics:    nopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Handle decides the outcome for one request.
func (s *Service) Handle(ctx context.Context, d models.Descriptor) Outcome {
	out := s.handle(ctx, d)
	s.metrics.RecordDecision(ctx, out.Kind.String())
	s.logger.Debug("Gate decision",
		"client_id", d.ClientID,
		"method", d.Method,
		"outcome", out.Kind.String(),
		"reason", out.Reason,
	)
	return out
}

func (s *Service) handle(ctx context.Context, d models.Descriptor) Outcome {
	// START -> RATE_CHECKED
	if s.limiter != nil {
		decision, err := s.limiter.Admit(ctx, d.ClientID)
		switch {
		case err != nil:
			// Throttling is best effort; a broken store does not lock clients out.
			s.logger.Warn("Rate limiter unavailable, admitting request", "error", err)
		case !decision.Allowed:
			s.emit(ctx, events.RateLimited, d, "")
			return Outcome{Kind: KindRateLimited}
		}
	}

	// RATE_CHECKED -> CLASSIFIED
	verdict := s.classifier.Classify(d)
	if !verdict.Pass {
		s.emit(ctx, events.ClassifierRejected, d, verdict.Reason)
		return Outcome{Kind: KindDenied, Reason: verdict.Reason}
	}
	if verdict.Preview {
		return Outcome{Kind: KindPreview}
	}

	// CLASSIFIED -> SESSION_VALID -> REDIRECT
	if s.cfg.Session.Enabled && s.sessions.Recall(d.Cookie) == session.StatusValid {
		s.emit(ctx, events.Redirect, d, "session")
		return Outcome{Kind: KindRedirect, Location: s.cfg.Gate.Destination, Reason: "session"}
	}

	if d.Method == http.MethodPost {
		return s.verifySubmission(ctx, d)
	}

	if tok := d.QueryValue(s.cfg.Gate.TokenParam); tok != "" {
		return s.redeem(ctx, d, tok)
	}

	// CHALLENGE_ISSUED
	ch, err := s.engine.IssueChallenge(ctx)
	if err != nil {
		return s.fault("issue challenge", err)
	}
	return Outcome{Kind: KindChallenge, Challenge: challengeView(ch, s.cfg)}
}

// verifySubmission evaluates a proof body and answers with a pass token.
func (s *Service) verifySubmission(ctx context.Context, d models.Descriptor) Outcome {
	if d.BadBody {
		return s.fault("decode submission", errors.New("malformed request body"))
	}
	if d.Submission == nil {
		return s.reject(ctx, d, "missing_submission")
	}

	sub := *d.Submission
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		return s.reject(ctx, d, "invalid_submission")
	}

	verdict, err := s.engine.Evaluate(ctx, d.ClientID, sub)
	if err != nil {
		return s.fault("evaluate submission", err)
	}
	if verdict.Reason != proof.ReasonChallengeInvalid && verdict.Reason != proof.ReasonChallengeReplayed {
		s.metrics.RecordScore(ctx, verdict.Score, verdict.Fallback)
	}
	if !verdict.Pass {
		return s.reject(ctx, d, verdict.Reason)
	}

	// PROOF_VERIFIED
	tok, _, err := s.tokens.Mint(token.KindPass, s.cfg.Token.TTL, &token.ProofMeta{
		Difficulty: verdict.Difficulty,
		Score:      verdict.Score,
		Fallback:   verdict.Fallback,
	})
	if err != nil {
		return s.fault("mint pass token", err)
	}

	reason := ""
	if verdict.Fallback {
		reason = "fallback"
	}
	s.emit(ctx, events.TokenIssued, d, reason)
	return Outcome{
		Kind: KindTokenIssued,
		Token: &models.TokenResponse{
			Token:     tok,
			ExpiresIn: int(s.cfg.Token.TTL / time.Second),
			Param:     s.cfg.Gate.TokenParam,
		},
		Reason: reason,
	}
}

// redeem exchanges a pass token for the redirect. Each pass token works once.
func (s *Service) redeem(ctx context.Context, d models.Descriptor, tok string) Outcome {
	claims, err := s.tokens.VerifyKind(tok, token.KindPass)
	if err != nil {
		reason := "token_invalid"
		if errors.Is(err, token.ErrExpired) {
			reason = "token_expired"
		}
		return s.reject(ctx, d, reason)
	}

	ttl := claims.ExpiresAt.Sub(s.tokens.Now())
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := s.store.PutIfAbsent(ctx, "pass:"+claims.Nonce, d.ClientID, ttl)
	if err != nil {
		return s.fault("consume pass token", err)
	}
	if !fresh {
		return s.reject(ctx, d, "token_replayed")
	}

	out := Outcome{Kind: KindRedirect, Location: s.cfg.Gate.Destination, Reason: "token"}
	if s.cfg.Session.Enabled {
		cookie, err := s.sessions.Remember(ctx)
		if err != nil {
			return s.fault("issue session marker", err)
		}
		out.Cookie = cookie
	}
	s.emit(ctx, events.Redirect, d, "token")
	return out
}

func (s *Service) reject(ctx context.Context, d models.Descriptor, reason string) Outcome {
	s.emit(ctx, events.ProofFailed, d, reason)
	return Outcome{Kind: KindRejected, Reason: reason}
}

func (s *Service) fault(op string, err error) Outcome {
	s.logger.Error("Gate fault", "op", op, "error", err)
	return Outcome{Kind: KindError, Reason: op}
}

func (s *Service) emit(ctx context.Context, name string, d models.Descriptor, reason string) {
	s.notifier.Notify(ctx, events.Event{
		Event:     name,
		ClientID:  d.ClientID,
		UserAgent: d.UserAgent,
		Timestamp: s.tokens.Now(),
		Reason:    reason,
	})
}
