// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package onboarding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesPerKey(t *testing.T) {
	k := newKeyLock()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("user")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Zero(t, k.size(), "entries are released")
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	k := newKeyLock()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, k.size())
	unlockA()
	assert.Zero(t, k.size())
}
