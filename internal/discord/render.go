// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/samber/lo"
)

const (
	idPrefix = "onboard"

	// Component and modal IDs beyond the view actions.
	idCategory  = "category"
	idRole      = "role"
	idInfoModal = "info"
	idCodeModal = "code"
	idFullName  = "full_name"
	idEmail     = "email"
	idCode      = "code_value"

	// Discord allows five rows of five buttons; one row is kept for navigation.
	maxRoleButtons   = 20
	maxSelectOptions = 25
	maxCustomID      = 100
	maxButtonLabel   = 80
	maxOptionLabel   = 100
	embedColor       = 0x5865F2
)

// customID builds a component ID such as "onboard:role:1a2b3c4d".
func customID(parts ...string) string {
	return truncate(strings.Join(append([]string{idPrefix}, parts...), ":"), maxCustomID)
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// parseCustomID splits an ID built by customID into its kind and argument.
// The argument may itself contain colons.
func parseCustomID(id string) (kind, arg string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) < 2 || parts[0] != idPrefix {
		return "", "", false
	}
	if len(parts) == 3 {
		arg = parts[2]
	}
	return parts[1], arg, true
}

// message is a rendered view ready to send or edit.
type message struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// render turns a view into an embed and interactive components. Items
// beyond Discord's component limits are dropped with a warning.
func render(ctx context.Context, log *slog.Logger, v *onboarding.View) *message {
	embed := &discordgo.MessageEmbed{
		Title:       v.Title,
		Description: v.Description,
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: i18n.T(ctx, "app_name")},
	}

	var rows []discordgo.MessageComponent
	switch v.Kind {
	case onboarding.ViewCategories:
		if len(v.Categories) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				categoryMenu(ctx, log, v.Categories),
			}})
		}
	case onboarding.ViewRoles:
		rows = append(rows, roleRows(log, v)...)
	}
	if nav := actionRow(ctx, v.Actions); nav != nil {
		rows = append(rows, nav)
	}

	return &message{
		Content:    v.Notice,
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: rows,
	}
}

// categoryMenu offers categories by catalog.Key so long names still fit
// the option value limit.
func categoryMenu(ctx context.Context, log *slog.Logger, categories []string) discordgo.SelectMenu {
	if len(categories) > maxSelectOptions {
		log.Warn("categories beyond the select menu limit are hidden",
			"categories", len(categories), "hidden", lo.Slice(categories, maxSelectOptions, len(categories)))
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID(idCategory),
		Placeholder: i18n.T(ctx, "select_category_placeholder"),
		Options: lo.Map(lo.Slice(categories, 0, maxSelectOptions), func(c string, _ int) discordgo.SelectMenuOption {
			return discordgo.SelectMenuOption{Label: truncate(c, maxOptionLabel), Value: catalog.Key(c)}
		}),
	}
}

func roleRows(log *slog.Logger, v *onboarding.View) []discordgo.MessageComponent {
	if len(v.Roles) > maxRoleButtons {
		hidden := lo.Map(v.Roles[maxRoleButtons:], func(r onboarding.RoleRow, _ int) string { return r.Label })
		log.Warn("roles beyond the button limit are hidden",
			"category", v.Category, "roles", len(v.Roles), "hidden", hidden)
	}
	buttons := lo.Map(lo.Slice(v.Roles, 0, maxRoleButtons), func(r onboarding.RoleRow, _ int) discordgo.MessageComponent {
		style := discordgo.SecondaryButton
		if r.Checked {
			style = discordgo.SuccessButton
		}
		return discordgo.Button{
			Label:    truncate(r.Label, maxButtonLabel),
			Style:    style,
			CustomID: customID(idRole, catalog.Key(r.Label)),
		}
	})
	return lo.Map(lo.Chunk(buttons, 5), func(chunk []discordgo.MessageComponent, _ int) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: chunk}
	})
}

func actionRow(ctx context.Context, actions []onboarding.Action) discordgo.MessageComponent {
	if len(actions) == 0 {
		return nil
	}
	return discordgo.ActionsRow{Components: lo.Map(actions, func(a onboarding.Action, _ int) discordgo.MessageComponent {
		return actionButton(ctx, a)
	})}
}

func actionButton(ctx context.Context, a onboarding.Action) discordgo.Button {
	style := discordgo.SecondaryButton
	switch a {
	case onboarding.ActionStart, onboarding.ActionEnterCode:
		style = discordgo.PrimaryButton
	case onboarding.ActionComplete:
		style = discordgo.SuccessButton
	}
	return discordgo.Button{
		Label:    i18n.T(ctx, "button_"+string(a)),
		Style:    style,
		CustomID: customID(string(a)),
	}
}

func infoModal(ctx context.Context) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID(idInfoModal),
			Title:    i18n.T(ctx, "view_info_title"),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  idFullName,
						Label:     i18n.T(ctx, "field_full_name"),
						Style:     discordgo.TextInputShort,
						Required:  true,
						MinLength: 1,
						MaxLength: onboarding.MaxNameLength,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    idEmail,
						Label:       i18n.T(ctx, "field_email"),
						Style:       discordgo.TextInputShort,
						Placeholder: "name@ds.study.iitm.ac.in",
						Required:    true,
						MaxLength:   254,
					},
				}},
			},
		},
	}
}

func codeModal(ctx context.Context) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID(idCodeModal),
			Title:    i18n.T(ctx, "view_code_modal_title"),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  idCode,
						Label:     i18n.T(ctx, "field_code"),
						Style:     discordgo.TextInputShort,
						Required:  true,
						MinLength: 6,
						MaxLength: 6,
					},
				}},
			},
		},
	}
}

// modalValues collects text input values by custom ID.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok {
				values[in.CustomID] = in.Value
			}
		}
	}
	return values
}
