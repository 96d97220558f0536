// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/campusbot/onboard/internal/i18n"
)

var (
	ErrNotFound        = errors.New("onboarding: no active setup")
	ErrExpired         = errors.New("onboarding: code expired")
	ErrMismatch        = errors.New("onboarding: code does not match")
	ErrTooManyAttempts = errors.New("onboarding: too many wrong codes")
	ErrCooldown        = errors.New("onboarding: resend cooldown")
	ErrNotVerified     = errors.New("onboarding: email not verified")
	ErrProtected       = errors.New("onboarding: role is protected")
	ErrUnavailable     = errors.New("onboarding: role or category unavailable")
	ErrRoleNotFound    = errors.New("onboarding: role missing on platform")
)

// Fields a ValidationError can refer to.
const (
	FieldName   = "name"
	FieldEmail  = "email"
	FieldDomain = "domain"
	FieldCode   = "code"
)

// ValidationError rejects user input before any state changes.
type ValidationError struct {
	Field   string
	Domains []string // accepted domains, set when Field is FieldDomain
}

func (e *ValidationError) Error() string {
	return "onboarding: invalid " + e.Field
}

// Transport operations.
const (
	OpEmail     = "email"
	OpDirectory = "directory"
	OpStore     = "store"
)

// TransportError wraps a failed call to the mailer, the platform or the
// store. The operation can be retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("onboarding: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CooldownError is returned when a resend comes too soon after the last code.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("onboarding: resend available in %s", e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// Message turns any error returned by the Machine into text for the member.
func Message(ctx context.Context, err error) string {
	var (
		verr *ValidationError
		terr *TransportError
		cerr *CooldownError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		switch verr.Field {
		case FieldName:
			return i18n.T(ctx, "error_validation_name")
		case FieldDomain:
			return i18n.TData(ctx, "error_validation_domain", map[string]any{
				"Domains": strings.Join(verr.Domains, ", "),
			})
		case FieldCode:
			return i18n.T(ctx, "error_validation_code")
		default:
			return i18n.T(ctx, "error_validation_email")
		}
	case errors.As(err, &cerr):
		return i18n.TData(ctx, "error_cooldown", map[string]any{
			"Seconds": int(math.Ceil(cerr.Remaining.Seconds())),
		})
	case errors.As(err, &terr):
		if terr.Op == OpEmail {
			return i18n.T(ctx, "error_email_transport")
		}
		return i18n.T(ctx, "error_transport")
	case errors.Is(err, ErrNotFound):
		return i18n.T(ctx, "error_not_found")
	case errors.Is(err, ErrExpired):
		return i18n.T(ctx, "error_expired")
	case errors.Is(err, ErrMismatch):
		return i18n.T(ctx, "error_mismatch")
	case errors.Is(err, ErrTooManyAttempts):
		return i18n.T(ctx, "error_too_many_attempts")
	case errors.Is(err, ErrNotVerified):
		return i18n.T(ctx, "error_not_verified")
	case errors.Is(err, ErrProtected):
		return i18n.T(ctx, "error_protected")
	case errors.Is(err, ErrUnavailable):
		return i18n.T(ctx, "error_unavailable")
	case errors.Is(err, ErrRoleNotFound):
		return i18n.T(ctx, "error_role_not_found")
	default:
		return i18n.T(ctx, "error_unknown")
	}
}
