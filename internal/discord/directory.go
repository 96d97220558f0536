// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package discord connects the onboarding machine to a Discord guild.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/platform"
	"github.com/samber/lo"
)

// Directory implements platform.Directory for one guild over the REST API.
type Directory struct {
	session *discordgo.Session
	guildID string
}

var _ platform.Directory = (*Directory)(nil)

// NewDirectory creates a directory for guildID.
func NewDirectory(s *discordgo.Session, guildID string) *Directory {
	return &Directory{session: s, guildID: guildID}
}

func (d *Directory) roles(ctx context.Context) ([]*discordgo.Role, error) {
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing guild roles: %w", err)
	}
	return roles, nil
}

// FindRoleByName returns the first guild role called name.
func (d *Directory) FindRoleByName(ctx context.Context, name string) (*platform.Role, error) {
	roles, err := d.roles(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := lo.Find(roles, func(r *discordgo.Role) bool { return r.Name == name })
	if !ok {
		return nil, platform.ErrRoleNotFound
	}
	return &platform.Role{ID: r.ID, Name: r.Name}, nil
}

// Roles returns every guild role.
func (d *Directory) Roles(ctx context.Context) ([]platform.Role, error) {
	roles, err := d.roles(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(roles, func(r *discordgo.Role, _ int) platform.Role {
		return platform.Role{ID: r.ID, Name: r.Name}
	}), nil
}

// CreateRole creates a plain, unmentionable role.
func (d *Directory) CreateRole(ctx context.Context, name string) (*platform.Role, error) {
	r, err := d.session.GuildRoleCreate(d.guildID, &discordgo.RoleParams{
		Name:        name,
		Hoist:       lo.ToPtr(false),
		Mentionable: lo.ToPtr(false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating role %q: %w", name, err)
	}
	return &platform.Role{ID: r.ID, Name: r.Name}, nil
}

// GrantRole adds roleID to the member. Discord accepts re-adding a held role.
func (d *Directory) GrantRole(ctx context.Context, userID, roleID string) error {
	if err := d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("granting role %s: %w", roleID, err)
	}
	return nil
}

// RevokeRole removes roleID from the member. Removing an unheld role succeeds.
func (d *Directory) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("revoking role %s: %w", roleID, err)
	}
	return nil
}

// SetNickname sets the member's guild nickname.
func (d *Directory) SetNickname(ctx context.Context, userID, nickname string) error {
	if err := d.session.GuildMemberNickname(d.guildID, userID, nickname, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("setting nickname: %w", err)
	}
	return nil
}

// ListRoleNames returns the names of all guild roles.
func (d *Directory) ListRoleNames(ctx context.Context) ([]string, error) {
	roles, err := d.roles(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(roles, func(r *discordgo.Role, _ int) string { return r.Name }), nil
}

// MemberRoleIDs returns the IDs of the roles the member holds.
func (d *Directory) MemberRoleIDs(ctx context.Context, userID string) ([]string, error) {
	m, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("reading member: %w", err)
	}
	return m.Roles, nil
}
