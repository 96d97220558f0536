// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/repository"
	"github.com/campusbot/onboard/internal/store"
	"github.com/campusbot/onboard/internal/store/storetest"
	"github.com/campusbot/onboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	version, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.Positive(t, version)
}

func TestRepository_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		_, repo := testutil.NewTestDB(t)
		return repo
	})
}

func TestPutSession_KeepsCreatedAt(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	s := &models.Session{
		UserID:    "u1",
		Phase:     models.PhaseAwaitingVerification,
		FullName:  "A. Kumar",
		Email:     "a.kumar@ds.study.iitm.ac.in",
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repo.PutSession(ctx, s))

	s.CreatedAt = created.Add(time.Hour)
	s.UpdatedAt = created.Add(time.Hour)
	s.Phase = models.PhaseVerified
	require.NoError(t, repo.PutSession(ctx, s))

	got, err := repo.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVerified, got.Phase)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
	assert.WithinDuration(t, created.Add(time.Hour), got.UpdatedAt, time.Second)
}

func TestClose(t *testing.T) {
	db, err := testutil.OpenDB(t)
	require.NoError(t, err)

	repo := repository.New(db)

	assert.NoError(t, repo.Close())
}
