// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository is the SQLite-backed onboarding store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campusbot/onboard/internal/database"
	"github.com/campusbot/onboard/internal/store"
	"github.com/vinovest/sqlx"
)

// Repository implements store.Store on top of sqlx.
type Repository struct {
	db *sqlx.DB
}

var _ store.Store = (*Repository)(nil)

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SchemaVersion returns the applied migration version.
func (r *Repository) SchemaVersion() (int64, error) {
	return database.Version(r.db.DB)
}

// Close closes the underlying connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// wrapError maps driver errors to store errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// inTx runs fn in a transaction, committing on success.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
