// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Challenge is the outstanding one-time code for a single user.
// Email and FullName are copied from the profile so a verified code can
// finish setup without reading the session.
type Challenge struct { //nolint:govet // fieldalignment: readability over optimization
	UserID    string    `db:"user_id" json:"user_id"`
	CodeHash  string    `db:"code_hash" json:"code_hash"` // SHA256 hash
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Attempts  int       `db:"attempts" json:"attempts"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
