// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package storetest runs the behaviour every store.Store must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("challenge put and get", func(t *testing.T) { testChallengePutGet(t, newStore(t)) })
	t.Run("challenge replaced", func(t *testing.T) { testChallengeReplaced(t, newStore(t)) })
	t.Run("challenge missing", func(t *testing.T) { testChallengeMissing(t, newStore(t)) })
	t.Run("update actions", func(t *testing.T) { testUpdateActions(t, newStore(t)) })
	t.Run("update exclusive", func(t *testing.T) { testUpdateExclusive(t, newStore(t)) })
	t.Run("session lifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("session delete once", func(t *testing.T) { testSessionDeleteOnce(t, newStore(t)) })
	t.Run("sweep", func(t *testing.T) { testSweep(t, newStore(t)) })
}

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func challenge(userID, hash string, expiresAt time.Time) *models.Challenge {
	return &models.Challenge{
		UserID:    userID,
		CodeHash:  hash,
		Email:     userID + "@ds.study.iitm.ac.in",
		FullName:  "User " + userID,
		ExpiresAt: expiresAt,
		CreatedAt: expiresAt.Add(-10 * time.Minute),
	}
}

func session(userID string, phase models.Phase, updatedAt time.Time) *models.Session {
	s := &models.Session{
		UserID:    userID,
		Phase:     phase,
		FullName:  "User " + userID,
		Email:     userID + "@ds.study.iitm.ac.in",
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	if phase.IsVerified() {
		s.VerifiedEmail = s.Email
	}
	return s
}

func testChallengePutGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := challenge("u1", "hash1", time.Now().Add(10*time.Minute))

	require.NoError(t, s.PutChallenge(ctx, c))

	got, err := s.GetChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hash1", got.CodeHash)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, c.FullName, got.FullName)
	assert.WithinDuration(t, c.ExpiresAt, got.ExpiresAt, time.Second)
}

func testChallengeReplaced(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutChallenge(ctx, challenge("u1", "first", time.Now().Add(time.Minute))))
	require.NoError(t, s.PutChallenge(ctx, challenge("u1", "second", time.Now().Add(time.Minute))))

	got, err := s.GetChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.CodeHash)
}

func testChallengeMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetChallenge(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.UpdateChallenge(ctx, "nobody", func(*models.Challenge) store.Action { return store.Keep })
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, s.DeleteChallenge(ctx, "nobody"))
}

func testUpdateActions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutChallenge(ctx, challenge("u1", "hash", time.Now().Add(time.Minute))))

	err := s.UpdateChallenge(ctx, "u1", func(c *models.Challenge) store.Action {
		c.Attempts = 99
		return store.Keep
	})
	require.NoError(t, err)
	got, err := s.GetChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts, "keep must not persist changes")

	err = s.UpdateChallenge(ctx, "u1", func(c *models.Challenge) store.Action {
		c.Attempts++
		return store.Save
	})
	require.NoError(t, err)
	got, err = s.GetChallenge(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	err = s.UpdateChallenge(ctx, "u1", func(*models.Challenge) store.Action { return store.Delete })
	require.NoError(t, err)
	_, err = s.GetChallenge(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateExclusive(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutChallenge(ctx, challenge("u1", "hash", time.Now().Add(time.Minute))))

	var consumed atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won := false
			err := s.UpdateChallenge(ctx, "u1", func(*models.Challenge) store.Action {
				won = true
				return store.Delete
			})
			if err == nil && won {
				consumed.Add(1)
				return
			}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), consumed.Load(), "exactly one caller may consume the challenge")
}

func testSessionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetSession(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	sess := session("u1", models.PhaseAwaitingVerification, base)
	require.NoError(t, s.PutSession(ctx, sess))

	got, err := s.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingVerification, got.Phase)
	assert.Equal(t, sess.FullName, got.FullName)
	assert.Empty(t, got.VerifiedEmail)

	got.Phase = models.PhaseRoleToggling
	got.VerifiedEmail = got.Email
	got.ActiveCategory = "Level"
	require.NoError(t, s.PutSession(ctx, got))

	got, err = s.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRoleToggling, got.Phase)
	assert.Equal(t, "Level", got.ActiveCategory)

	require.NoError(t, s.DeleteSession(ctx, "u1"))
	_, err = s.GetSession(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSessionDeleteOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutSession(ctx, session("u1", models.PhaseRoleToggling, base)))

	require.NoError(t, s.DeleteSession(ctx, "u1"))
	assert.ErrorIs(t, s.DeleteSession(ctx, "u1"), store.ErrNotFound)
}

func testSweep(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	// expired challenge, unverified session: both go
	require.NoError(t, s.PutChallenge(ctx, challenge("expired", "h", now.Add(-time.Minute))))
	require.NoError(t, s.PutSession(ctx, session("expired", models.PhaseAwaitingVerification, now.Add(-20*time.Minute))))

	// live challenge: both stay
	require.NoError(t, s.PutChallenge(ctx, challenge("live", "h", now.Add(5*time.Minute))))
	require.NoError(t, s.PutSession(ctx, session("live", models.PhaseAwaitingVerification, now.Add(-5*time.Minute))))

	// verified, no challenge: stays
	require.NoError(t, s.PutSession(ctx, session("verified", models.PhaseRoleToggling, now.Add(-30*time.Minute))))

	// verified but idle past the limit: goes
	require.NoError(t, s.PutSession(ctx, session("idle", models.PhaseCategorySelecting, now.Add(-48*time.Hour))))

	// unverified, no challenge, recent: stays (mail may just have failed)
	require.NoError(t, s.PutSession(ctx, session("fresh", models.PhaseAwaitingVerification, now.Add(-time.Minute))))

	res, err := s.Sweep(ctx, store.SweepPolicy{
		Now:         now,
		OrphanAfter: 10 * time.Minute,
		Idle:        24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Challenges)
	assert.Equal(t, 2, res.Sessions)

	for _, id := range []string{"live", "verified", "fresh"} {
		_, err := s.GetSession(ctx, id)
		assert.NoError(t, err, id)
	}
	for _, id := range []string{"expired", "idle"} {
		_, err := s.GetSession(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound, id)
	}
	_, err = s.GetChallenge(ctx, "live")
	assert.NoError(t, err)
	_, err = s.GetChallenge(ctx, "expired")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
