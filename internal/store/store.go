// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package store defines the keyed storage behind onboarding sessions and
// verification challenges, plus the in-memory and Redis implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/campusbot/onboard/internal/models"
)

// ErrNotFound is returned when no record exists for a user.
var ErrNotFound = errors.New("store: not found")

// Action tells UpdateChallenge what to do with the challenge after the callback.
type Action int

const (
	// Keep leaves the stored challenge untouched.
	Keep Action = iota
	// Save writes the (possibly modified) challenge back.
	Save
	// Delete removes the challenge.
	Delete
)

// ChallengeFunc inspects a challenge under exclusive access for its user.
type ChallengeFunc func(c *models.Challenge) Action

// SweepPolicy controls which records a sweep removes.
type SweepPolicy struct {
	Now time.Time
	// OrphanAfter removes unverified sessions with no live challenge once
	// they have been idle this long.
	OrphanAfter time.Duration
	// Idle removes any session untouched this long. Zero disables it.
	Idle time.Duration
}

// SweepResult counts what a sweep removed.
type SweepResult struct {
	Challenges int
	Sessions   int
}

// Store holds one challenge and one session per user.
// Every method is safe for concurrent use.
type Store interface {
	// PutChallenge stores c, replacing any challenge the user already has.
	PutChallenge(ctx context.Context, c *models.Challenge) error
	// GetChallenge returns the user's challenge or ErrNotFound.
	GetChallenge(ctx context.Context, userID string) (*models.Challenge, error)
	// UpdateChallenge runs fn against the user's challenge while no other
	// operation on that challenge can interleave. Returns ErrNotFound when
	// the user has no challenge. Backends with optimistic locking may call
	// fn again after a conflict, so fn must only mutate c and its own locals.
	UpdateChallenge(ctx context.Context, userID string, fn ChallengeFunc) error
	// DeleteChallenge removes the user's challenge. Missing is not an error.
	DeleteChallenge(ctx context.Context, userID string) error

	// PutSession stores s, replacing any session the user already has.
	PutSession(ctx context.Context, s *models.Session) error
	// GetSession returns the user's session or ErrNotFound.
	GetSession(ctx context.Context, userID string) (*models.Session, error)
	// DeleteSession removes the user's session, returning ErrNotFound when
	// there was none. Exactly one of several concurrent callers succeeds.
	DeleteSession(ctx context.Context, userID string) error

	// Sweep removes expired challenges and abandoned sessions.
	Sweep(ctx context.Context, policy SweepPolicy) (SweepResult, error)
	Close() error
}

// orphaned reports whether a session should be swept under p given whether
// its user still has a live challenge.
func orphaned(s *models.Session, hasLiveChallenge bool, p SweepPolicy) bool {
	if s.Idle(p.Now, p.Idle) {
		return true
	}
	if s.Verified() || hasLiveChallenge {
		return false
	}
	return p.Now.Sub(s.UpdatedAt) > p.OrphanAfter
}
