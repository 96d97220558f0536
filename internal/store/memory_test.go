// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package store_test

import (
	"testing"

	"github.com/campusbot/onboard/internal/store"
	"github.com/campusbot/onboard/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store {
		return store.NewMemory()
	})
}
