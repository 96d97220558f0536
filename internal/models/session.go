// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Session carries the profile captured for one user until setup completes.
type Session struct { //nolint:govet // fieldalignment: readability over optimization
	UserID         string    `db:"user_id" json:"user_id"`
	Phase          Phase     `db:"phase" json:"phase"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	VerifiedEmail  string    `db:"verified_email" json:"verified_email"`
	ActiveCategory string    `db:"active_category" json:"active_category"`
	LastCodeSentAt time.Time `db:"last_code_sent_at" json:"last_code_sent_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Verified reports whether the session's email has been confirmed.
func (s *Session) Verified() bool {
	return s.VerifiedEmail != "" && s.Phase.IsVerified()
}

// Idle reports whether the session has not been touched within d of now.
func (s *Session) Idle(now time.Time, d time.Duration) bool {
	if d <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > d
}
