// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package onboarding

import (
	"context"
	"time"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/samber/lo"
)

// ViewKind identifies which screen a View represents.
type ViewKind string

const (
	ViewWelcome    ViewKind = "welcome"
	ViewCodeSent   ViewKind = "code_sent"
	ViewCategories ViewKind = "categories"
	ViewRoles      ViewKind = "roles"
	ViewCompleted  ViewKind = "completed"
)

// Action is a navigation affordance offered by a View.
type Action string

const (
	ActionStart     Action = "start"
	ActionEnterCode Action = "enter_code"
	ActionResend    Action = "resend"
	ActionBack      Action = "back"
	ActionComplete  Action = "complete"
)

// RoleRow is one role in a category with the member's current membership.
type RoleRow struct {
	Label   string
	Checked bool
}

// View is a platform-neutral rendering of an onboarding step. Text is
// already localized for the context it was built with.
type View struct {
	Kind        ViewKind
	Title       string
	Description string
	// Notice is a transient line shown above the view, e.g. "code resent".
	Notice     string
	Category   string
	Categories []string
	Roles      []RoleRow
	Actions    []Action
}

// WithNotice returns a copy of v carrying notice.
func (v *View) WithNotice(notice string) *View {
	cp := *v
	cp.Notice = notice
	return &cp
}

// Checked returns the labels of the checked rows.
func (v *View) Checked() []string {
	return lo.FilterMap(v.Roles, func(r RoleRow, _ int) (string, bool) {
		return r.Label, r.Checked
	})
}

func welcomeView(ctx context.Context) *View {
	return &View{
		Kind:        ViewWelcome,
		Title:       i18n.T(ctx, "view_welcome_title"),
		Description: i18n.T(ctx, "view_welcome_description"),
		Actions:     []Action{ActionStart},
	}
}

func codeSentView(ctx context.Context, email string, ttl time.Duration) *View {
	return &View{
		Kind:  ViewCodeSent,
		Title: i18n.T(ctx, "view_code_sent_title"),
		Description: i18n.TData(ctx, "view_code_sent_description", map[string]any{
			"Email":   email,
			"Minutes": int(ttl.Round(time.Minute) / time.Minute),
		}),
		Actions: []Action{ActionEnterCode, ActionResend},
	}
}

func categoriesView(ctx context.Context, offered []catalog.Category) *View {
	return &View{
		Kind:        ViewCategories,
		Title:       i18n.T(ctx, "view_categories_title"),
		Description: i18n.T(ctx, "view_categories_description"),
		Categories:  lo.Map(offered, func(c catalog.Category, _ int) string { return c.Name }),
		Actions:     []Action{ActionComplete},
	}
}

func rolesView(ctx context.Context, category string, roles []string, held map[string]bool) *View {
	return &View{
		Kind:        ViewRoles,
		Title:       i18n.TData(ctx, "view_roles_title", map[string]any{"Category": category}),
		Description: i18n.T(ctx, "view_roles_description"),
		Category:    category,
		Roles: lo.Map(roles, func(name string, _ int) RoleRow {
			return RoleRow{Label: name, Checked: held[name]}
		}),
		Actions: []Action{ActionBack, ActionComplete},
	}
}

func completedView(ctx context.Context, name string) *View {
	return &View{
		Kind:        ViewCompleted,
		Title:       i18n.T(ctx, "view_completed_title"),
		Description: i18n.TData(ctx, "view_completed_description", map[string]any{"Name": name}),
	}
}
