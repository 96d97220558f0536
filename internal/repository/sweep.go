// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"github.com/campusbot/onboard/internal/store"
	"github.com/vinovest/sqlx"
)

// Sweep deletes expired challenges, then sessions that are idle or were
// abandoned before verification.
func (r *Repository) Sweep(ctx context.Context, p store.SweepPolicy) (store.SweepResult, error) {
	var res store.SweepResult

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		out, err := tx.ExecContext(ctx, `DELETE FROM verification_challenges WHERE expires_at < ?`, p.Now)
		if err != nil {
			return fmt.Errorf("deleting expired challenges: %w", err)
		}
		n, _ := out.RowsAffected()
		res.Challenges = int(n)

		if p.Idle > 0 {
			out, err = tx.ExecContext(ctx, `DELETE FROM onboarding_sessions WHERE updated_at < ?`, p.Now.Add(-p.Idle))
			if err != nil {
				return fmt.Errorf("deleting idle sessions: %w", err)
			}
			n, _ = out.RowsAffected()
			res.Sessions += int(n)
		}

		out, err = tx.ExecContext(ctx, `
DELETE FROM onboarding_sessions
WHERE verified_email = ''
  AND updated_at < ?
  AND user_id NOT IN (SELECT user_id FROM verification_challenges)`, p.Now.Add(-p.OrphanAfter))
		if err != nil {
			return fmt.Errorf("deleting orphaned sessions: %w", err)
		}
		n, _ = out.RowsAffected()
		res.Sessions += int(n)
		return nil
	})

	return res, err
}
