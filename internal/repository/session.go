// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/store"
)

// PutSession creates or replaces the user's session.
func (r *Repository) PutSession(ctx context.Context, s *models.Session) error {
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO onboarding_sessions (user_id, phase, full_name, email, verified_email, active_category, last_code_sent_at, created_at, updated_at)
VALUES (:user_id, :phase, :full_name, :email, :verified_email, :active_category, :last_code_sent_at, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
    phase             = excluded.phase,
    full_name         = excluded.full_name,
    email             = excluded.email,
    verified_email    = excluded.verified_email,
    active_category   = excluded.active_category,
    last_code_sent_at = excluded.last_code_sent_at,
    updated_at        = excluded.updated_at`, s)
	return err
}

// GetSession retrieves the user's session.
func (r *Repository) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var s models.Session
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM onboarding_sessions WHERE user_id = ?`, userID); err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// DeleteSession deletes the user's session, reporting store.ErrNotFound
// when no row was removed.
func (r *Repository) DeleteSession(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM onboarding_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
