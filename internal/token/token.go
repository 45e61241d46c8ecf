// Package token issues and verifies compact, HMAC-signed, time-boxed tokens.
//
// A token is two unpadded base64url parts joined by a dot: the JSON payload
// and HMAC-SHA256 of the payload bytes under the service key. Tokens are
// valid strictly before their expiry instant. Rotating the key invalidates
// every token issued under the previous one.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind separates the purposes a token can be minted for. A token of one kind
// never verifies as another.
type Kind string

const (
	KindChallenge Kind = "challenge"
	KindPass      Kind = "pass"
	KindSession   Kind = "session"
)

const separator = "."

var (
	// ErrInvalid matches every verification failure.
	ErrInvalid = errors.New("token invalid")
	// ErrMalformed is returned when the token text cannot be split or decoded.
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
	// ErrSignature is returned when the tag does not match the payload.
	ErrSignature = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	// ErrExpired is returned at or after the expiry instant.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
	// ErrWrongKind is returned by VerifyKind for a token of another kind.
	ErrWrongKind = fmt.Errorf("%w: wrong kind", ErrInvalid)
)

// ProofMeta records how a pass was earned.
type ProofMeta struct {
	Difficulty int  `json:"d,omitempty"`
	Score      int  `json:"s,omitempty"`
	Fallback   bool `json:"f,omitempty"`
}

// Claims is the signed payload. Times are carried as Unix nanoseconds so a
// verified token reports exactly the instants it was issued with.
type Claims struct {
	Kind      Kind       `json:"k"`
	IssuedAt  time.Time  `json:"-"`
	ExpiresAt time.Time  `json:"-"`
	Nonce     string     `json:"n"`
	Proof     *ProofMeta `json:"p,omitempty"`
}

type wireClaims struct {
	Kind      Kind       `json:"k"`
	IssuedAt  int64      `json:"iat"`
	ExpiresAt int64      `json:"exp"`
	Nonce     string     `json:"n"`
	Proof     *ProofMeta `json:"p,omitempty"`
}

// Service signs and verifies tokens with a single symmetric key.
type Service struct {
	key []byte
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the clock used for issuing and verification.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a token service. An empty key is refused; there is no
// built-in default secret.
func NewService(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, errors.New("token signing key is required")
	}
	s := &Service{
		key: append([]byte(nil), key...),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Mint issues a token of the given kind valid for ttl from now with a fresh nonce.
func (s *Service) Mint(kind Kind, ttl time.Duration, proof *ProofMeta) (string, Claims, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", Claims{}, err
	}
	now := s.now()
	claims := Claims{
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Nonce:     nonce,
		Proof:     proof,
	}
	tok, err := s.Issue(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return tok, claims, nil
}

// Issue signs the claims and returns the token text.
func (s *Service) Issue(claims Claims) (string, error) {
	if claims.Kind == "" {
		return "", errors.New("token kind is required")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", errors.New("token must expire after it is issued")
	}

	payload, err := json.Marshal(wireClaims{
		Kind:      claims.Kind,
		IssuedAt:  claims.IssuedAt.UnixNano(),
		ExpiresAt: claims.ExpiresAt.UnixNano(),
		Nonce:     claims.Nonce,
		Proof:     claims.Proof,
	})
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + separator + enc.EncodeToString(s.sign(payload)), nil
}

// Verify checks the tag and expiry and returns the claims.
func (s *Service) Verify(tok string) (Claims, error) {
	payloadPart, tagPart, ok := strings.Cut(tok, separator)
	if !ok || payloadPart == "" || tagPart == "" {
		return Claims{}, ErrMalformed
	}

	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(payloadPart)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	tag, err := enc.DecodeString(tagPart)
	if err != nil {
		return Claims{}, ErrMalformed
	}

	if !hmac.Equal(tag, s.sign(payload)) {
		return Claims{}, ErrSignature
	}

	var wc wireClaims
	if err := json.Unmarshal(payload, &wc); err != nil {
		return Claims{}, ErrMalformed
	}

	claims := Claims{
		Kind:      wc.Kind,
		IssuedAt:  time.Unix(0, wc.IssuedAt),
		ExpiresAt: time.Unix(0, wc.ExpiresAt),
		Nonce:     wc.Nonce,
		Proof:     wc.Proof,
	}

	if !s.now().Before(claims.ExpiresAt) {
		return Claims{}, ErrExpired
	}

	return claims, nil
}

// VerifyKind verifies the token and requires it to be of the given kind.
func (s *Service) VerifyKind(tok string, kind Kind) (Claims, error) {
	claims, err := s.Verify(tok)
	if err != nil {
		return Claims{}, err
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongKind
	}
	return claims, nil
}

func (s *Service) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// NewNonce returns 128 random bits, base64url encoded.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
