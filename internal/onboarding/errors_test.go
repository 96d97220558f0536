// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package onboarding_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMessage(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.English)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", onboarding.ErrNotFound, "Your setup session has ended. Please start over."},
		{"wrapped not found", fmt.Errorf("select: %w", onboarding.ErrNotFound), "Your setup session has ended. Please start over."},
		{"expired", onboarding.ErrExpired, "That code has expired. Request a new one with Resend code."},
		{"mismatch", onboarding.ErrMismatch, "That code is not right. Try again or request a new one."},
		{"locked out", onboarding.ErrTooManyAttempts, "Too many wrong codes. Request a new one with Resend code."},
		{"protected", onboarding.ErrProtected, "That role can't be self-assigned."},
		{"unavailable", onboarding.ErrUnavailable, "That role is not available right now."},
		{"not verified", onboarding.ErrNotVerified, "Verify your email before choosing roles."},
		{"cooldown", &onboarding.CooldownError{Remaining: 12500 * time.Millisecond}, "Please wait 13 seconds before requesting another code."},
		{"name", &onboarding.ValidationError{Field: onboarding.FieldName}, "Please enter your full name (1 to 50 characters)."},
		{"domain", &onboarding.ValidationError{Field: onboarding.FieldDomain, Domains: []string{"a.edu", "b.edu"}}, "Only institutional addresses ending in a.edu, b.edu are accepted."},
		{"email transport", &onboarding.TransportError{Op: onboarding.OpEmail, Err: errors.New("x")}, "We couldn't send the email. Please try again with Resend code."},
		{"directory transport", &onboarding.TransportError{Op: onboarding.OpDirectory, Err: errors.New("x")}, "Something went wrong on our side. Please try again in a moment."},
		{"unknown", errors.New("boom"), "Something unexpected happened. Please start over."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, onboarding.Message(ctx, tt.err))
		})
	}
}

func TestMessage_NeverLeaksRawError(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.German)
	err := &onboarding.TransportError{Op: onboarding.OpStore, Err: errors.New("dial tcp 10.0.0.3:6379: connection refused")}

	msg := onboarding.Message(ctx, err)

	assert.NotContains(t, msg, "10.0.0.3")
	assert.Equal(t, "Bei uns ist etwas schiefgelaufen. Bitte versuche es gleich noch einmal.", msg)
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("smtp down")
	terr := &onboarding.TransportError{Op: onboarding.OpEmail, Err: cause}

	assert.ErrorIs(t, terr, cause)
	assert.Equal(t, "onboarding: email: smtp down", terr.Error())

	cerr := &onboarding.CooldownError{Remaining: 1500 * time.Millisecond}
	assert.ErrorIs(t, cerr, onboarding.ErrCooldown)
	assert.Equal(t, "onboarding: resend available in 2s", cerr.Error())

	verr := &onboarding.ValidationError{Field: onboarding.FieldEmail}
	assert.Equal(t, "onboarding: invalid email", verr.Error())
}

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
		ok    bool
	}{
		{"a.kumar@ds.study.iitm.ac.in", "ds.study.iitm.ac.in", true},
		{"A.Kumar@DS.Study.IITM.ac.in", "ds.study.iitm.ac.in", true},
		{"x@es.study.iitm.ac.in", "es.study.iitm.ac.in", true},
		{"x@mail.es.study.iitm.ac.in", "es.study.iitm.ac.in", true},
		{"x@gmail.com", "", false},
		{"x@xds.study.iitm.ac.in", "", false},
		{"@ds.study.iitm.ac.in", "", false},
		{"ds.study.iitm.ac.in", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got, ok := onboarding.MatchDomain(tt.email, domains)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityRole(t *testing.T) {
	assert.Equal(t, "ds.study.iitm.ac.in", onboarding.IdentityRole("a@mail.ds.study.iitm.ac.in", domains))
	assert.Equal(t, "example.org", onboarding.IdentityRole("a@example.org", domains))
}
