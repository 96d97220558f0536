// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/google/uuid"
)

const (
	commandName        = "onboarding"
	cmdRefreshRoles    = "refresh-roles"
	cmdSyncPermissions = "sync-permissions"
	cmdTestEmail       = "test-email"
	cmdSweep           = "sweep"
	optAddress         = "address"
)

// adminCommand defines the /onboarding slash command. Discord hides it
// from members without the Administrator permission.
func adminCommand() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionAdministrator)
	dm := false
	return &discordgo.ApplicationCommand{
		Name:                     commandName,
		Description:              "Onboarding administration",
		DefaultMemberPermissions: &perm,
		DMPermission:             &dm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        cmdRefreshRoles,
				Description: "Rescan guild roles against the catalog",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        cmdSyncPermissions,
				Description: "Hide every channel except the welcome channel from the base role",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        cmdTestEmail,
				Description: "Send a test verification email",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optAddress,
					Description: "Recipient address",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        cmdSweep,
				Description: "Remove expired codes and stale setup sessions",
			},
		},
	}
}

// isAdmin reports whether the interaction comes from a guild administrator.
func isAdmin(i *discordgo.Interaction) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// interactionUser returns the invoking user in guilds and in DMs.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	i := ic.Interaction
	user := interactionUser(i)
	if user == nil {
		return
	}

	ctx := i18n.WithPlatformLocale(b.ctx, string(i.Locale))
	log := b.logger.With("interaction_id", uuid.NewString(), "user_id", user.ID)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, log, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, log, s, i, user.ID)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, log, s, i, user.ID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	if data.Name != commandName || len(data.Options) == 0 {
		return
	}
	if !isAdmin(i) {
		b.respondEphemeral(ctx, log, s, i, i18n.T(ctx, "admin_forbidden"))
		return
	}

	sub := data.Options[0]
	var address string
	for _, opt := range sub.Options {
		if opt.Name == optAddress {
			address = opt.StringValue()
		}
	}

	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to defer command", "error", err)
		return
	}

	log.Info("admin command", "command", sub.Name)
	content, err := b.RunAdmin(ctx, sub.Name, address)
	if err != nil {
		log.Error("admin command failed", "command", sub.Name, "error", err)
		content = i18n.TData(ctx, "admin_failed", map[string]any{"Error": err.Error()})
	}
	if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to edit command response", "error", err)
	}
}

func (b *Bot) handleComponent(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, userID string) {
	data := i.MessageComponentData()
	kind, arg, ok := parseCustomID(data.CustomID)
	if !ok {
		return
	}

	switch onboarding.Action(kind) {
	case onboarding.ActionStart:
		view, err := b.machine.Begin(ctx, userID)
		if err == nil && view.Kind == onboarding.ViewWelcome {
			b.respond(ctx, log, s, i, infoModal(ctx))
			return
		}
		b.update(ctx, log, s, i, func() (*onboarding.View, error) { return view, err })
		return
	case onboarding.ActionEnterCode:
		b.respond(ctx, log, s, i, codeModal(ctx))
		return
	}

	var op func() (*onboarding.View, error)
	switch {
	case kind == string(onboarding.ActionResend):
		op = func() (*onboarding.View, error) { return b.machine.Resend(ctx, userID) }
	case kind == string(onboarding.ActionBack):
		op = func() (*onboarding.View, error) { return b.machine.Back(ctx, userID) }
	case kind == string(onboarding.ActionComplete):
		op = func() (*onboarding.View, error) { return b.machine.Complete(ctx, userID) }
	case kind == idCategory && len(data.Values) > 0:
		category, ok := b.machine.Catalog().CategoryByKey(data.Values[0])
		if !ok {
			category = data.Values[0]
		}
		op = func() (*onboarding.View, error) { return b.machine.SelectCategory(ctx, userID, category) }
	case kind == idRole:
		op = func() (*onboarding.View, error) { return b.machine.ToggleRoleKey(ctx, userID, arg) }
	default:
		log.Warn("unknown component", "custom_id", data.CustomID)
		return
	}
	b.deferred(ctx, log, s, i, op)
}

func (b *Bot) handleModal(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, userID string) {
	data := i.ModalSubmitData()
	kind, _, ok := parseCustomID(data.CustomID)
	if !ok {
		return
	}
	values := modalValues(data)

	var op func() (*onboarding.View, error)
	switch kind {
	case idInfoModal:
		op = func() (*onboarding.View, error) {
			return b.machine.SubmitInfo(ctx, userID, values[idFullName], values[idEmail])
		}
	case idCodeModal:
		op = func() (*onboarding.View, error) {
			return b.machine.SubmitCode(ctx, userID, values[idCode])
		}
	default:
		log.Warn("unknown modal", "custom_id", data.CustomID)
		return
	}
	b.deferred(ctx, log, s, i, op)
}

// deferred acknowledges the interaction, runs op and edits the original
// message with the resulting view.
func (b *Bot) deferred(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, op func() (*onboarding.View, error)) {
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to defer interaction", "error", err)
		return
	}

	view, err := op()
	if err != nil {
		b.followupError(ctx, log, s, i, err)
		return
	}

	msg := render(ctx, log, view)
	if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &msg.Content,
		Embeds:     &msg.Embeds,
		Components: &msg.Components,
	}, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to update view", "error", err)
	}
}

// update answers immediately with the view op returns.
func (b *Bot) update(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, op func() (*onboarding.View, error)) {
	view, err := op()
	if err != nil {
		b.respondEphemeral(ctx, log, s, i, b.errorText(ctx, log, err))
		return
	}
	msg := render(ctx, log, view)
	b.respond(ctx, log, s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Embeds:     msg.Embeds,
			Components: msg.Components,
		},
	})
}

func (b *Bot) followupError(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, err error) {
	params := &discordgo.WebhookParams{
		Content: b.errorText(ctx, log, err),
		Flags:   discordgo.MessageFlagsEphemeral,
	}
	if errors.Is(err, onboarding.ErrNotFound) {
		params.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				actionButton(ctx, onboarding.ActionStart),
			}},
		}
	}
	if _, ferr := s.FollowupMessageCreate(i, false, params, discordgo.WithContext(ctx)); ferr != nil {
		log.Error("failed to send error followup", "error", ferr)
	}
}

// errorText logs err at a level matching its kind and returns the member-facing text.
func (b *Bot) errorText(ctx context.Context, log *slog.Logger, err error) string {
	var terr *onboarding.TransportError
	if errors.As(err, &terr) {
		log.Error("onboarding step failed", "error", err)
	} else {
		log.Info("onboarding step rejected", "error", err)
	}
	return onboarding.Message(ctx, err)
}

func (b *Bot) respondEphemeral(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, content string) {
	b.respond(ctx, log, s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) respond(ctx context.Context, log *slog.Logger, s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i, resp, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to respond to interaction", "error", err)
	}
}
