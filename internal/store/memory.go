// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package store

import (
	"context"
	"sync"

	"github.com/campusbot/onboard/internal/models"
)

// Memory is a process-local Store. All state is lost on restart.
type Memory struct {
	challenges map[string]models.Challenge
	sessions   map[string]models.Session
	mu         sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]models.Challenge),
		sessions:   make(map[string]models.Session),
	}
}

func (m *Memory) PutChallenge(_ context.Context, c *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.challenges[c.UserID] = *c
	return nil
}

func (m *Memory) GetChallenge(_ context.Context, userID string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) UpdateChallenge(_ context.Context, userID string, fn ChallengeFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[userID]
	if !ok {
		return ErrNotFound
	}

	switch fn(&c) {
	case Save:
		m.challenges[userID] = c
	case Delete:
		delete(m.challenges, userID)
	case Keep:
	}
	return nil
}

func (m *Memory) DeleteChallenge(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.challenges, userID)
	return nil
}

func (m *Memory) PutSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.UserID] = *s
	return nil
}

func (m *Memory) GetSession(_ context.Context, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) DeleteSession(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, userID)
	return nil
}

func (m *Memory) Sweep(_ context.Context, p SweepPolicy) (SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SweepResult
	for id, c := range m.challenges {
		if c.Expired(p.Now) {
			delete(m.challenges, id)
			res.Challenges++
		}
	}
	for id, s := range m.sessions {
		_, live := m.challenges[id]
		if orphaned(&s, live, p) {
			delete(m.sessions, id)
			res.Sessions++
		}
	}
	return res, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
