// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package platform declares the collaborators the onboarding core talks to:
// the chat platform's member directory, the mailer and the audit notifier.
package platform

import (
	"context"
	"errors"
)

// ErrRoleNotFound is returned by Directory.FindRoleByName when no role has that name.
var ErrRoleNotFound = errors.New("platform: role not found")

// Role is a role as it exists on the platform.
type Role struct {
	ID   string
	Name string
}

// Directory reads and mutates guild roles and members.
// Implementations must treat granting a held role and revoking an unheld
// role as successful no-ops.
type Directory interface {
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	Roles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (*Role, error)
	GrantRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	SetNickname(ctx context.Context, userID, nickname string) error
	ListRoleNames(ctx context.Context) ([]string, error)
	MemberRoleIDs(ctx context.Context, userID string) ([]string, error)
}

// Mailer delivers verification codes.
type Mailer interface {
	SendCode(ctx context.Context, to, code, displayName string) error
}

// Notifier publishes audit messages to staff.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// NopNotifier is a Notifier that drops messages. It is used when no audit
// channel is configured.
type NopNotifier struct{}

// Publish does nothing.
func (NopNotifier) Publish(context.Context, string) error {
	return nil
}
