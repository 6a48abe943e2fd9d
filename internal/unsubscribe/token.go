// Package unsubscribe issues and verifies stateless opt-out tokens.
//
// Token layout: base64url(JSON{sub, purpose, exp}) "." base64url(HMAC-SHA256(encoded payload)).
// There is no revocation list; a token stays valid until exp.
package unsubscribe

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose the only accepted purpose claim
const Purpose = "unsubscribe"

// DefaultTTL token lifetime
const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrNoSecret  = errors.New("unsubscribe secret not configured")
	ErrMalformed = errors.New("malformed token")
	ErrSignature = errors.New("invalid token signature")
	ErrPurpose   = errors.New("wrong token purpose")
	ErrExpired   = errors.New("token expired")
)

var encoding = base64.RawURLEncoding.Strict()

type payload struct {
	Subject string           `json:"sub"`
	Purpose string           `json:"purpose"`
	Expires *jwt.NumericDate `json:"exp"`
}

// Signer issues and verifies tokens with one shared secret
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures Signer
type Option func(*Signer)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner fails with ErrNoSecret when secret is empty; ttl <= 0 means DefaultTTL
func NewSigner(secret string, ttl time.Duration, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue token for subjectID expiring after the configured ttl
func (s *Signer) Issue(subjectID string) (string, error) {
	return s.sign(payload{
		Subject: subjectID,
		Purpose: Purpose,
		Expires: jwt.NewNumericDate(s.now().Add(s.ttl)),
	})
}

func (s *Signer) sign(p payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	encoded := encoding.EncodeToString(raw)

	sig, err := jwt.SigningMethodHS256.Sign(encoded, s.secret)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return encoded + "." + encoding.EncodeToString(sig), nil
}

// Verify returns the subject of a valid token
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrMalformed
	}

	sig, err := encoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0], sig, s.secret); err != nil {
		return "", ErrSignature
	}

	raw, err := encoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformed
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", ErrMalformed
	}

	if p.Purpose != Purpose {
		return "", ErrPurpose
	}
	if p.Subject == "" || p.Expires == nil {
		return "", ErrMalformed
	}
	if !s.now().Before(p.Expires.Time) {
		return "", ErrExpired
	}
	return p.Subject, nil
}
