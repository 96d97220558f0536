// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/campusbot/onboard/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)
	require.NoError(t, db.Close())
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	for _, table := range []string{"onboarding_sessions", "verification_challenges"} {
		var count int64
		err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, table)
	}

	version, err := database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestOpen_WithExistingParams(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:?_busy_timeout=100")

	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
}

func TestOpen_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "onboard.db")

	db, err := database.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	assert.FileExists(t, dbPath)

	var journalMode string
	require.NoError(t, db.Get(&journalMode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateDown(db.DB))

	var count int64
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='onboarding_sessions'"))
	assert.Zero(t, count)
}
