// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"github.com/campusbot/onboard/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	require.NoError(t, i18n.Init())
	require.NoError(t, i18n.Init())
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "Campus Onboarding", i18n.T(ctx, "app_name"))
}

func TestT_German(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	assert.Equal(t, "Campus-Onboarding", i18n.T(ctx, "app_name"))
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	result := i18n.T(context.Background(), "button_resend")
	assert.Equal(t, "Resend code", result)
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "view_roles_title", map[string]any{"Category": "House"})
	assert.Equal(t, "House roles", result)

	body := i18n.TData(ctx, "email_code_body", map[string]any{"Name": "A. Kumar", "Code": "123456", "Minutes": 10})
	assert.Contains(t, body, "A. Kumar")
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "10 minutes")
}

func TestTranslationsComplete(t *testing.T) {
	require.NoError(t, i18n.Init())

	en := i18n.WithLocale(context.Background(), language.English)
	de := i18n.WithLocale(context.Background(), language.German)

	for _, id := range []string{
		"view_welcome_title", "view_categories_title", "view_completed_title",
		"error_not_found", "error_expired", "error_mismatch", "error_protected",
		"error_unavailable", "error_transport", "email_code_subject",
		"admin_forbidden", "audit_completed",
	} {
		t.Run(id, func(t *testing.T) {
			assert.NotEqual(t, id, i18n.T(en, id))
			assert.NotEqual(t, id, i18n.T(de, id))
			assert.NotEqual(t, i18n.T(en, id), i18n.T(de, id))
		})
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected language.Tag
		accept   string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.English, "en-GB"},
		{language.German, "de"},
		{language.German, "de-DE"},
		{language.German, "de_AT"},
		{language.English, "fr"},
		{language.English, "pt-BR"},
		{language.English, ""},
		{language.German, "de, en;q=0.9"},
		{language.English, "en, de;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.expected, i18n.MatchLanguage(tt.accept))
		})
	}
}

func TestWithPlatformLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithPlatformLocale(context.Background(), "de")

	assert.Equal(t, "de", i18n.GetLocale(ctx))
	assert.Equal(t, "Zurück", i18n.T(ctx, "button_back"))
}

func TestGetLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.AmericanEnglish)

	assert.Equal(t, "en", i18n.GetLocale(ctx))
}

func TestGetLocale_Default(t *testing.T) {
	assert.Equal(t, "en", i18n.GetLocale(context.Background()))
}
