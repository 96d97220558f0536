// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/platform"
	"github.com/samber/lo"
)

// overwrite is one permission change for the base role on a channel.
type overwrite struct {
	ChannelID string
	Allow     int64
	Deny      int64
}

// planPermissions hides every channel from roleID except welcomeID, which
// stays visible. Only the view bit changes; other bits in an existing
// overwrite are kept. Channels whose overwrite already matches are skipped.
func planPermissions(channels []*discordgo.Channel, roleID, welcomeID string) []overwrite {
	return lo.FilterMap(channels, func(ch *discordgo.Channel, _ int) (overwrite, bool) {
		var allow, deny int64
		current, ok := lo.Find(ch.PermissionOverwrites, func(po *discordgo.PermissionOverwrite) bool {
			return po.Type == discordgo.PermissionOverwriteTypeRole && po.ID == roleID
		})
		if ok {
			allow, deny = current.Allow, current.Deny
		}

		want := overwrite{ChannelID: ch.ID}
		if ch.ID == welcomeID {
			want.Allow = allow | discordgo.PermissionViewChannel
			want.Deny = deny &^ discordgo.PermissionViewChannel
		} else {
			want.Allow = allow &^ discordgo.PermissionViewChannel
			want.Deny = deny | discordgo.PermissionViewChannel
		}

		if ok && allow == want.Allow && deny == want.Deny {
			return overwrite{}, false
		}
		return want, true
	})
}

// SyncPermissions makes the base role see only the welcome channel and
// returns how many channels were changed.
func (b *Bot) SyncPermissions(ctx context.Context) (int, error) {
	role, err := b.dir.FindRoleByName(ctx, b.cfg.BaseRole)
	if errors.Is(err, platform.ErrRoleNotFound) {
		return 0, fmt.Errorf("base role %q does not exist", b.cfg.BaseRole)
	}
	if err != nil {
		return 0, err
	}

	channels, err := b.session.GuildChannels(b.cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("listing channels: %w", err)
	}

	changed := 0
	var errs []error
	for _, ow := range planPermissions(channels, role.ID, b.cfg.WelcomeChannelID) {
		err := b.session.ChannelPermissionSet(ow.ChannelID, role.ID,
			discordgo.PermissionOverwriteTypeRole, ow.Allow, ow.Deny, discordgo.WithContext(ctx))
		if err != nil {
			b.logger.Warn("failed to set channel permissions", "channel_id", ow.ChannelID, "error", err)
			errs = append(errs, fmt.Errorf("channel %s: %w", ow.ChannelID, err))
			continue
		}
		changed++
	}

	b.logger.Info("permissions synced", "changed", changed, "failed", len(errs))
	return changed, errors.Join(errs...)
}
