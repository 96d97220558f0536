// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var discardLogger = slog.New(slog.DiscardHandler)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestCustomID(t *testing.T) {
	tests := []struct {
		id       string
		wantKind string
		wantArg  string
		wantOK   bool
	}{
		{customID("start"), "start", "", true},
		{customID(idRole, "Gir"), idRole, "Gir", true},
		{customID(idRole, "Data: Science"), idRole, "Data: Science", true},
		{"onboard", "", "", false},
		{"other:role:Gir", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			kind, arg, ok := parseCustomID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantArg, arg)
		})
	}
}

func TestCustomID_Truncates(t *testing.T) {
	id := customID(idRole, strings.Repeat("x", 200))
	assert.Len(t, id, maxCustomID)

	id = customID(idRole, strings.Repeat("é", 200))
	assert.True(t, utf8.ValidString(id))
	assert.Equal(t, maxCustomID, utf8.RuneCountInString(id))
}

func TestRender_Welcome(t *testing.T) {
	ctx := context.Background()
	msg := render(ctx, discardLogger, &onboarding.View{
		Kind:    onboarding.ViewWelcome,
		Title:   "Welcome",
		Actions: []onboarding.Action{onboarding.ActionStart},
	})

	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Welcome", msg.Embeds[0].Title)
	assert.Equal(t, "Campus Onboarding", msg.Embeds[0].Footer.Text)
	require.Len(t, msg.Components, 1)

	row := msg.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 1)
	btn := row.Components[0].(discordgo.Button)
	assert.Equal(t, "onboard:start", btn.CustomID)
	assert.Equal(t, discordgo.PrimaryButton, btn.Style)
}

func TestRender_Categories(t *testing.T) {
	msg := render(context.Background(), discardLogger, &onboarding.View{
		Kind:       onboarding.ViewCategories,
		Categories: []string{"Level", "House"},
		Actions:    []onboarding.Action{onboarding.ActionComplete},
	})

	require.Len(t, msg.Components, 2)
	menu := msg.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Equal(t, customID(idCategory), menu.CustomID)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, "Level", menu.Options[0].Label)
	assert.Equal(t, catalog.Key("Level"), menu.Options[0].Value)

	complete := msg.Components[1].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.SuccessButton, complete.Style)
}

func TestRender_CategoriesEmpty(t *testing.T) {
	msg := render(context.Background(), discardLogger, &onboarding.View{
		Kind:    onboarding.ViewCategories,
		Actions: []onboarding.Action{onboarding.ActionComplete},
	})
	assert.Len(t, msg.Components, 1)
}

func TestRender_Roles(t *testing.T) {
	msg := render(context.Background(), discardLogger, &onboarding.View{
		Kind: onboarding.ViewRoles,
		Roles: []onboarding.RoleRow{
			{Label: "Gir", Checked: true},
			{Label: "Kanha"},
		},
		Actions: []onboarding.Action{onboarding.ActionBack, onboarding.ActionComplete},
	})

	require.Len(t, msg.Components, 2)
	roles := msg.Components[0].(discordgo.ActionsRow).Components
	require.Len(t, roles, 2)

	gir := roles[0].(discordgo.Button)
	assert.Equal(t, "onboard:role:"+catalog.Key("Gir"), gir.CustomID)
	assert.Equal(t, "Gir", gir.Label)
	assert.Equal(t, discordgo.SuccessButton, gir.Style)
	assert.Equal(t, discordgo.SecondaryButton, roles[1].(discordgo.Button).Style)

	nav := msg.Components[1].(discordgo.ActionsRow).Components
	assert.Equal(t, "Back", nav[0].(discordgo.Button).Label)
}

func TestRender_RoleChunking(t *testing.T) {
	var rows []onboarding.RoleRow
	for n := range 27 {
		rows = append(rows, onboarding.RoleRow{Label: fmt.Sprintf("Club %d", n)})
	}

	msg := render(context.Background(), discardLogger, &onboarding.View{
		Kind:    onboarding.ViewRoles,
		Roles:   rows,
		Actions: []onboarding.Action{onboarding.ActionBack},
	})

	// Four full rows of role buttons plus navigation.
	require.Len(t, msg.Components, 5)
	for _, c := range msg.Components[:4] {
		assert.Len(t, c.(discordgo.ActionsRow).Components, 5)
	}
}

func TestRender_LongRoleNames(t *testing.T) {
	long := strings.Repeat("Société ", 20)
	other := long + "B"
	msg := render(context.Background(), discardLogger, &onboarding.View{
		Kind:  onboarding.ViewRoles,
		Roles: []onboarding.RoleRow{{Label: long + "A"}, {Label: other}},
	})

	buttons := msg.Components[0].(discordgo.ActionsRow).Components
	a, b := buttons[0].(discordgo.Button), buttons[1].(discordgo.Button)
	assert.NotEqual(t, a.CustomID, b.CustomID, "names sharing a long prefix stay distinct")
	assert.LessOrEqual(t, len(a.CustomID), maxCustomID)
	assert.Equal(t, maxButtonLabel, utf8.RuneCountInString(a.Label))
	assert.True(t, utf8.ValidString(a.Label))

	_, arg, ok := parseCustomID(b.CustomID)
	require.True(t, ok)
	assert.Equal(t, catalog.Key(other), arg)
}

func TestRender_WarnsWhenLimitsHideItems(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	var rows []onboarding.RoleRow
	for n := range 22 {
		rows = append(rows, onboarding.RoleRow{Label: fmt.Sprintf("Club %d", n)})
	}
	render(context.Background(), log, &onboarding.View{Kind: onboarding.ViewRoles, Category: "Clubs", Roles: rows})
	assert.Contains(t, buf.String(), "roles beyond the button limit are hidden")
	assert.Contains(t, buf.String(), "Club 21")

	buf.Reset()
	var categories []string
	for n := range 27 {
		categories = append(categories, fmt.Sprintf("Category %d", n))
	}
	msg := render(context.Background(), log, &onboarding.View{Kind: onboarding.ViewCategories, Categories: categories})
	menu := msg.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Len(t, menu.Options, maxSelectOptions)
	assert.Contains(t, buf.String(), "categories beyond the select menu limit are hidden")
	assert.Contains(t, buf.String(), "Category 26")

	buf.Reset()
	render(context.Background(), log, &onboarding.View{Kind: onboarding.ViewRoles, Roles: rows[:3]})
	assert.Empty(t, buf.String())
}

func TestRender_NoticeAndLocale(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.German)
	msg := render(ctx, discardLogger, &onboarding.View{
		Kind:    onboarding.ViewRoles,
		Notice:  "resent",
		Actions: []onboarding.Action{onboarding.ActionBack},
	})

	assert.Equal(t, "resent", msg.Content)
	nav := msg.Components[0].(discordgo.ActionsRow).Components
	assert.Equal(t, "Zurück", nav[0].(discordgo.Button).Label)
}

func TestModals(t *testing.T) {
	ctx := context.Background()

	info := infoModal(ctx)
	assert.Equal(t, discordgo.InteractionResponseModal, info.Type)
	assert.Equal(t, customID(idInfoModal), info.Data.CustomID)
	assert.Len(t, info.Data.Components, 2)

	code := codeModal(ctx)
	assert.Equal(t, customID(idCodeModal), code.Data.CustomID)
	input := code.Data.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
	assert.Equal(t, idCode, input.CustomID)
	assert.Equal(t, 6, input.MaxLength)
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: customID(idInfoModal),
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: idFullName, Value: "Asha Rao"},
			}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: idEmail, Value: "asha@ds.study.iitm.ac.in"},
			}},
		},
	}

	assert.Equal(t, map[string]string{
		idFullName: "Asha Rao",
		idEmail:    "asha@ds.study.iitm.ac.in",
	}, modalValues(data))
}
