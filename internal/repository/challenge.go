// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/store"
	"github.com/vinovest/sqlx"
)

const upsertChallenge = `
INSERT INTO verification_challenges (user_id, code_hash, email, full_name, attempts, expires_at, created_at)
VALUES (:user_id, :code_hash, :email, :full_name, :attempts, :expires_at, :created_at)
ON CONFLICT (user_id) DO UPDATE SET
    code_hash  = excluded.code_hash,
    email      = excluded.email,
    full_name  = excluded.full_name,
    attempts   = excluded.attempts,
    expires_at = excluded.expires_at,
    created_at = excluded.created_at`

// PutChallenge stores a challenge, replacing the user's previous one.
func (r *Repository) PutChallenge(ctx context.Context, c *models.Challenge) error {
	_, err := r.db.NamedExecContext(ctx, upsertChallenge, c)
	return err
}

// GetChallenge retrieves the user's challenge.
func (r *Repository) GetChallenge(ctx context.Context, userID string) (*models.Challenge, error) {
	var c models.Challenge
	err := r.db.GetContext(ctx, &c, `SELECT * FROM verification_challenges WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// UpdateChallenge reads and rewrites the challenge inside one immediate
// transaction, so concurrent callers are serialized by SQLite's write lock.
func (r *Repository) UpdateChallenge(ctx context.Context, userID string, fn store.ChallengeFunc) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var c models.Challenge
		err := tx.GetContext(ctx, &c, `SELECT * FROM verification_challenges WHERE user_id = ?`, userID)
		if err != nil {
			return wrapError(err)
		}

		switch fn(&c) {
		case store.Save:
			if _, err := tx.NamedExecContext(ctx, upsertChallenge, &c); err != nil {
				return fmt.Errorf("saving challenge: %w", err)
			}
		case store.Delete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM verification_challenges WHERE user_id = ?`, userID); err != nil {
				return fmt.Errorf("deleting challenge: %w", err)
			}
		case store.Keep:
		}
		return nil
	})
}

// DeleteChallenge deletes the user's challenge if there is one.
func (r *Repository) DeleteChallenge(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_challenges WHERE user_id = ?`, userID)
	return err
}
