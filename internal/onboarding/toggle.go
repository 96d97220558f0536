// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package onboarding

import (
	"context"
	"log/slog"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/metrics"
	"github.com/campusbot/onboard/internal/platform"
	"github.com/samber/lo"
)

// Engine flips a member's self-service roles.
type Engine struct {
	catalog *catalog.Catalog
	dir     platform.Directory
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a toggle engine. logger and m may be nil.
func NewEngine(cat *catalog.Catalog, dir platform.Directory, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: cat, dir: dir, logger: logger, metrics: m}
}

// Toggle grants roleName to userID if the member lacks it and revokes it
// otherwise, then returns the category's refreshed view.
func (e *Engine) Toggle(ctx context.Context, userID, category, roleName string) (*View, error) {
	if e.catalog.IsProtected(roleName) {
		e.metrics.Toggle(metrics.ActionDenied)
		e.logger.Warn("protected role toggle refused", "user_id", userID, "role", roleName)
		return nil, ErrProtected
	}
	if !e.catalog.Contains(category, roleName) || !e.catalog.IsAvailable(roleName) {
		e.metrics.Toggle(metrics.ActionDenied)
		return nil, ErrUnavailable
	}

	ids, err := e.roleIDs(ctx)
	if err != nil {
		return nil, err
	}
	roleID, ok := ids[roleName]
	if !ok {
		e.logger.Warn("catalog role missing on platform", "role", roleName, "category", category)
		return nil, ErrRoleNotFound
	}

	// Check membership right before acting; a concurrent toggle can still
	// interleave, which is tolerated as two independent flips.
	memberOf, err := e.memberOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	if memberOf[roleID] {
		if err := e.dir.RevokeRole(ctx, userID, roleID); err != nil {
			return nil, e.transport(err)
		}
		delete(memberOf, roleID)
		e.metrics.Toggle(metrics.ActionRevoke)
		e.logger.Info("role revoked", "user_id", userID, "role", roleName, "category", category)
	} else {
		if err := e.dir.GrantRole(ctx, userID, roleID); err != nil {
			return nil, e.transport(err)
		}
		memberOf[roleID] = true
		e.metrics.Toggle(metrics.ActionGrant)
		e.logger.Info("role granted", "user_id", userID, "role", roleName, "category", category)
	}

	roles := e.catalog.AvailableRoles(category)
	return rolesView(ctx, category, roles, held(roles, ids, memberOf)), nil
}

// View renders category with the member's current membership. Only
// available roles are listed.
func (e *Engine) View(ctx context.Context, userID, category string) (*View, error) {
	roles := e.catalog.AvailableRoles(category)
	if len(roles) == 0 {
		return nil, ErrUnavailable
	}

	ids, err := e.roleIDs(ctx)
	if err != nil {
		return nil, err
	}
	memberOf, err := e.memberOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rolesView(ctx, category, roles, held(roles, ids, memberOf)), nil
}

// roleIDs maps platform role names to IDs from a single listing.
func (e *Engine) roleIDs(ctx context.Context) (map[string]string, error) {
	roles, err := e.dir.Roles(ctx)
	if err != nil {
		return nil, e.transport(err)
	}
	ids := make(map[string]string, len(roles))
	for _, r := range roles {
		if _, dup := ids[r.Name]; !dup {
			ids[r.Name] = r.ID
		}
	}
	return ids, nil
}

func (e *Engine) memberOf(ctx context.Context, userID string) (map[string]bool, error) {
	ids, err := e.dir.MemberRoleIDs(ctx, userID)
	if err != nil {
		return nil, e.transport(err)
	}
	return lo.SliceToMap(ids, func(id string) (string, bool) { return id, true }), nil
}

// held reports which of roles the member holds, by name. Roles missing on
// the platform are left out.
func held(roles []string, ids map[string]string, memberOf map[string]bool) map[string]bool {
	out := make(map[string]bool, len(roles))
	for _, name := range roles {
		if id, ok := ids[name]; ok {
			out[name] = memberOf[id]
		}
	}
	return out
}

func (e *Engine) transport(err error) error {
	e.metrics.TransportFailure(metrics.OpDirectory)
	return &TransportError{Op: OpDirectory, Err: err}
}
