// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/database"
	"github.com/campusbot/onboard/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// OpenDB opens an in-memory SQLite database the caller must close.
func OpenDB(t *testing.T) (*sqlx.DB, error) {
	t.Helper()
	return database.Open(context.Background(), ":memory:")
}

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := OpenDB(t)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// Clock is a manually advanced clock.
type Clock struct {
	now time.Time
	mu  sync.Mutex
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CatalogRoles are the role names NewCatalog's categories use.
var CatalogRoles = []string{"Foundation", "Diploma", "Degree", "Gir", "Kanha", "Admin"}

// NewCatalog returns a catalog with Level and House categories plus an
// Admin role that is both listed and protected, refreshed against
// CatalogRoles.
func NewCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New([]catalog.Category{
		{Name: "Level", Roles: []string{"Foundation", "Diploma", "Degree", "Admin"}},
		{Name: "House", Roles: []string{"Gir", "Kanha"}},
		{Name: "Clubs", Roles: []string{"Missing Club"}},
	}, []string{"Admin"})

	dir := NewDirectory(CatalogRoles...)
	_, err := c.Refresh(context.Background(), dir)
	require.NoError(t, err)
	return c
}
