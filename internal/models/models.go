// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models holds the onboarding records shared by the stores and services.
package models

// Phase is the onboarding step a session is currently in.
type Phase string

const (
	PhaseAwaitingInfo         Phase = "awaiting_info"
	PhaseAwaitingVerification Phase = "awaiting_verification"
	PhaseVerified             Phase = "verified"
	PhaseCategorySelecting    Phase = "category_selecting"
	PhaseRoleToggling         Phase = "role_toggling"
	PhaseCompleted            Phase = "completed"
)

// IsVerified reports whether the phase is past email verification.
func (p Phase) IsVerified() bool {
	switch p {
	case PhaseVerified, PhaseCategorySelecting, PhaseRoleToggling, PhaseCompleted:
		return true
	}
	return false
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseAwaitingInfo, PhaseAwaitingVerification, PhaseVerified,
		PhaseCategorySelecting, PhaseRoleToggling, PhaseCompleted:
		return true
	}
	return false
}
