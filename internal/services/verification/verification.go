// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification issues and checks one-time email verification codes.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/store"
)

const (
	// CodeTTL is how long an issued code stays valid.
	CodeTTL = 10 * time.Minute

	codeMin  = 100000
	codeSpan = 900000
)

var (
	ErrNotFound        = errors.New("verification: no pending code")
	ErrExpired         = errors.New("verification: code expired")
	ErrMismatch        = errors.New("verification: code does not match")
	ErrTooManyAttempts = errors.New("verification: too many attempts")
)

// Issued is a freshly generated code, returned once for delivery.
type Issued struct {
	Code      string
	ExpiresAt time.Time
}

// Result is what a successfully validated code proves.
type Result struct {
	Email    string
	FullName string
}

// Service manages at most one live code per user.
type Service struct {
	store       store.Store
	now         func() time.Time
	random      io.Reader
	ttl         time.Duration
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides CodeTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxAttempts discards a code after n wrong submissions. Zero means unlimited.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRandom replaces crypto/rand as the code source.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		s.random = r
	}
}

// New creates a verification service on top of st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		now:    time.Now,
		random: rand.Reader,
		ttl:    CodeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns how long issued codes live.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new code for userID, replacing any earlier one.
func (s *Service) Issue(ctx context.Context, userID, email, fullName string) (*Issued, error) {
	code, err := GenerateCode(s.random)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Challenge{
		UserID:    userID,
		CodeHash:  HashCode(code),
		Email:     email,
		FullName:  fullName,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.PutChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}

	return &Issued{Code: code, ExpiresAt: c.ExpiresAt}, nil
}

// Validate checks code against the user's pending challenge. A match or an
// expiry consumes the challenge; a mismatch leaves it for another try.
func (s *Service) Validate(ctx context.Context, userID, code string) (*Result, error) {
	submitted := HashCode(strings.TrimSpace(code))
	now := s.now().UTC()

	var (
		result  *Result
		outcome error
	)
	err := s.store.UpdateChallenge(ctx, userID, func(c *models.Challenge) store.Action {
		result = nil

		if c.Expired(now) {
			outcome = ErrExpired
			return store.Delete
		}

		if subtle.ConstantTimeCompare([]byte(submitted), []byte(c.CodeHash)) != 1 {
			c.Attempts++
			if s.maxAttempts > 0 && c.Attempts >= s.maxAttempts {
				outcome = ErrTooManyAttempts
				return store.Delete
			}
			outcome = ErrMismatch
			return store.Save
		}

		outcome = nil
		result = &Result{Email: c.Email, FullName: c.FullName}
		return store.Delete
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("validating code: %w", err)
	}
	if outcome != nil {
		return nil, outcome
	}
	return result, nil
}

// Revoke drops any pending code for userID.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	return s.store.DeleteChallenge(ctx, userID)
}

// Pending reports whether userID has a challenge that has not yet expired.
func (s *Service) Pending(ctx context.Context, userID string) (bool, error) {
	c, err := s.store.GetChallenge(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !c.Expired(s.now()), nil
}

// GenerateCode returns a uniformly random six-digit code in [100000, 999999].
func GenerateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// HashCode computes the SHA256 hash of a code.
func HashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}
