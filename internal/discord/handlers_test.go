// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminCommand(t *testing.T) {
	cmd := adminCommand()

	assert.Equal(t, commandName, cmd.Name)
	require.NotNil(t, cmd.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionAdministrator), *cmd.DefaultMemberPermissions)

	names := lo.Map(cmd.Options, func(o *discordgo.ApplicationCommandOption, _ int) string { return o.Name })
	assert.ElementsMatch(t, []string{cmdRefreshRoles, cmdSyncPermissions, cmdTestEmail, cmdSweep}, names)

	testEmail, ok := lo.Find(cmd.Options, func(o *discordgo.ApplicationCommandOption) bool { return o.Name == cmdTestEmail })
	require.True(t, ok)
	require.Len(t, testEmail.Options, 1)
	assert.True(t, testEmail.Options[0].Required)
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name string
		i    *discordgo.Interaction
		want bool
	}{
		{"dm", &discordgo.Interaction{User: &discordgo.User{ID: "1"}}, false},
		{"member", &discordgo.Interaction{Member: &discordgo.Member{Permissions: discordgo.PermissionSendMessages}}, false},
		{"admin", &discordgo.Interaction{Member: &discordgo.Member{Permissions: discordgo.PermissionAdministrator | discordgo.PermissionSendMessages}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAdmin(tt.i))
		})
	}
}

func TestInteractionUser(t *testing.T) {
	guild := &discordgo.Interaction{Member: &discordgo.Member{User: &discordgo.User{ID: "g"}}}
	dm := &discordgo.Interaction{User: &discordgo.User{ID: "d"}}

	assert.Equal(t, "g", interactionUser(guild).ID)
	assert.Equal(t, "d", interactionUser(dm).ID)
	assert.Nil(t, interactionUser(&discordgo.Interaction{}))
}
