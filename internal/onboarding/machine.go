// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package onboarding drives a member from first contact through email
// verification and role selection to completion.
package onboarding

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/metrics"
	"github.com/campusbot/onboard/internal/models"
	"github.com/campusbot/onboard/internal/platform"
	"github.com/campusbot/onboard/internal/services/verification"
	"github.com/campusbot/onboard/internal/store"
)

// MaxNameLength is the longest accepted full name, in characters.
const MaxNameLength = 50

// Options configures a Machine.
type Options struct { //nolint:govet // fieldalignment not critical
	// AllowedDomains are the institutional email domains, lower-case.
	AllowedDomains []string
	// BaseRole is the restricted role removed on completion.
	BaseRole string
	// ResendCooldown is the minimum gap between two codes. Zero disables it.
	ResendCooldown time.Duration
	// SessionIdle removes sessions untouched this long during a sweep.
	SessionIdle time.Duration

	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier platform.Notifier
	Now      func() time.Time
}

// Machine is the onboarding state machine. All methods are safe for
// concurrent use; events for the same user are handled one at a time.
type Machine struct {
	store   store.Store
	codes   *verification.Service
	catalog *catalog.Catalog
	dir     platform.Directory
	mailer  platform.Mailer
	toggles *Engine
	opts    Options
	locks   *keyLock
	logger  *slog.Logger
}

// New creates a Machine.
func New(st store.Store, codes *verification.Service, cat *catalog.Catalog, dir platform.Directory, mailer platform.Mailer, opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = platform.NopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{
		store:   st,
		codes:   codes,
		catalog: cat,
		dir:     dir,
		mailer:  mailer,
		toggles: NewEngine(cat, dir, opts.Logger, opts.Metrics),
		opts:    opts,
		locks:   newKeyLock(),
		logger:  opts.Logger,
	}
}

// Catalog returns the role catalog the machine offers from.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// Begin starts or resumes setup. A verified member goes straight back to
// category selection; a member with a live code sees the code prompt.
func (m *Machine) Begin(ctx context.Context, userID string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.session(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return welcomeView(ctx), nil
	}
	if err != nil {
		return nil, err
	}

	if s.Verified() {
		return m.enterCategories(ctx, s)
	}

	pending, err := m.codes.Pending(ctx, userID)
	if err != nil {
		return nil, m.storeError(err)
	}
	if pending {
		return codeSentView(ctx, s.Email, m.codes.TTL()), nil
	}
	return welcomeView(ctx), nil
}

// SubmitInfo validates the profile form, issues a code and mails it.
// Rejected input leaves no session or code behind. A resubmission inside
// the resend cooldown is refused like a resend.
func (m *Machine) SubmitInfo(ctx context.Context, userID, fullName, email string) (*View, error) {
	defer m.locks.Lock(userID)()

	existing, err := m.session(ctx, userID)
	switch {
	case err == nil && existing.Verified():
		return m.enterCategories(ctx, existing)
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if verr := m.validateProfile(fullName, email); verr != nil {
		m.logger.Info("profile rejected", "user_id", userID, "field", verr.Field)
		if existing != nil {
			m.discard(ctx, userID)
		}
		return nil, verr
	}
	if existing != nil {
		if err := m.checkCooldown(existing); err != nil {
			return nil, err
		}
	}

	now := m.opts.Now().UTC()
	s := &models.Session{
		UserID:    userID,
		Phase:     models.PhaseAwaitingVerification,
		FullName:  fullName,
		Email:     email,
		CreatedAt: now,
	}
	if existing != nil {
		s.CreatedAt = existing.CreatedAt
	}

	if err := m.sendCode(ctx, s); err != nil {
		return nil, err
	}
	return codeSentView(ctx, email, m.codes.TTL()), nil
}

// Resend replaces the member's code with a fresh one.
func (m *Machine) Resend(ctx context.Context, userID string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Verified() {
		return m.enterCategories(ctx, s)
	}

	if err := m.checkCooldown(s); err != nil {
		return nil, err
	}

	if err := m.sendCode(ctx, s); err != nil {
		return nil, err
	}
	view := codeSentView(ctx, s.Email, m.codes.TTL())
	return view.WithNotice(i18n.TData(ctx, "notice_resent", map[string]any{"Email": s.Email})), nil
}

// checkCooldown refuses a new code while the last one is younger than
// ResendCooldown.
func (m *Machine) checkCooldown(s *models.Session) error {
	cd := m.opts.ResendCooldown
	if cd <= 0 || s.LastCodeSentAt.IsZero() {
		return nil
	}
	if wait := s.LastCodeSentAt.Add(cd).Sub(m.opts.Now()); wait > 0 {
		return &CooldownError{Remaining: wait}
	}
	return nil
}

// SubmitCode checks a verification code and, on success, runs the verified
// entry actions and moves on to category selection.
func (m *Machine) SubmitCode(ctx context.Context, userID, code string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Verified() {
		return m.enterCategories(ctx, s)
	}

	code = strings.TrimSpace(code)
	if !validCode(code) {
		return nil, &ValidationError{Field: FieldCode}
	}

	result, err := m.codes.Validate(ctx, userID, code)
	switch {
	case err == nil:
		m.opts.Metrics.Validation(metrics.ResultOk)
	case errors.Is(err, verification.ErrNotFound):
		m.opts.Metrics.Validation(metrics.ResultNotFound)
		return nil, ErrNotFound
	case errors.Is(err, verification.ErrExpired):
		m.opts.Metrics.Validation(metrics.ResultExpired)
		return nil, ErrExpired
	case errors.Is(err, verification.ErrMismatch):
		m.opts.Metrics.Validation(metrics.ResultMismatch)
		return nil, ErrMismatch
	case errors.Is(err, verification.ErrTooManyAttempts):
		m.opts.Metrics.Validation(metrics.ResultLockedOut)
		m.logger.Warn("code locked out", "user_id", userID)
		return nil, ErrTooManyAttempts
	default:
		m.opts.Metrics.Validation(metrics.ResultError)
		return nil, m.storeError(err)
	}

	m.verified(ctx, s, result)

	s.Phase = models.PhaseVerified
	s.FullName = result.FullName
	s.VerifiedEmail = result.Email
	return m.enterCategories(ctx, s)
}

// Back returns a verified member to category selection.
func (m *Machine) Back(ctx context.Context, userID string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.verifiedSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.enterCategories(ctx, s)
}

// SelectCategory makes category the member's active editing view. It
// does not touch the member's roles.
func (m *Machine) SelectCategory(ctx context.Context, userID, category string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.verifiedSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !m.catalog.IsOffered(category) {
		return nil, ErrUnavailable
	}

	view, err := m.toggles.View(ctx, userID, category)
	if err != nil {
		return nil, err
	}

	s.Phase = models.PhaseRoleToggling
	s.ActiveCategory = category
	if err := m.putSession(ctx, s); err != nil {
		return nil, err
	}
	return view, nil
}

// ToggleRole flips roleName within the member's active category.
func (m *Machine) ToggleRole(ctx context.Context, userID, roleName string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.verifiedSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Phase != models.PhaseRoleToggling || s.ActiveCategory == "" {
		return nil, ErrNotFound
	}
	return m.toggles.Toggle(ctx, userID, s.ActiveCategory, roleName)
}

// ToggleRoleKey is ToggleRole for a role named by its catalog.Key within
// the active category. A key that no longer resolves yields ErrUnavailable.
func (m *Machine) ToggleRoleKey(ctx context.Context, userID, key string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.verifiedSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Phase != models.PhaseRoleToggling || s.ActiveCategory == "" {
		return nil, ErrNotFound
	}
	roleName, ok := m.catalog.RoleByKey(s.ActiveCategory, key)
	if !ok {
		return nil, ErrUnavailable
	}
	return m.toggles.Toggle(ctx, userID, s.ActiveCategory, roleName)
}

// Complete removes the base role and ends the session. If a concurrent
// Complete already removed the session the call still succeeds.
func (m *Machine) Complete(ctx context.Context, userID string) (*View, error) {
	defer m.locks.Lock(userID)()

	s, err := m.verifiedSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := m.revokeBaseRole(ctx, userID); err != nil {
		return nil, err
	}

	err = m.store.DeleteSession(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.logger.Debug("session already completed", "user_id", userID)
		return completedView(ctx, s.FullName), nil
	case err != nil:
		return nil, m.storeError(err)
	}
	if err := m.codes.Revoke(ctx, userID); err != nil {
		m.logger.Warn("failed to clear code on completion", "user_id", userID, "error", err)
	}

	m.opts.Metrics.Completion()
	m.logger.Info("onboarding completed", "user_id", userID)
	m.notify(ctx, i18n.TData(ctx, "audit_completed", map[string]any{"UserID": userID}))

	return completedView(ctx, s.FullName), nil
}

// Session returns the member's current session.
func (m *Machine) Session(ctx context.Context, userID string) (*models.Session, error) {
	return m.session(ctx, userID)
}

// RefreshCatalog rescans the platform's roles and replaces the available set.
func (m *Machine) RefreshCatalog(ctx context.Context) (int, error) {
	n, err := m.catalog.Refresh(ctx, m.dir)
	if err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpDirectory)
		return 0, &TransportError{Op: OpDirectory, Err: err}
	}
	m.opts.Metrics.CatalogRoles(n)
	m.logger.Info("catalog refreshed", "available_roles", n)
	return n, nil
}

// Sweep removes expired codes and abandoned sessions.
func (m *Machine) Sweep(ctx context.Context) (store.SweepResult, error) {
	res, err := m.store.Sweep(ctx, store.SweepPolicy{
		Now:         m.opts.Now().UTC(),
		OrphanAfter: m.codes.TTL(),
		Idle:        m.opts.SessionIdle,
	})
	if err != nil {
		return res, m.storeError(err)
	}
	m.opts.Metrics.Swept(res.Challenges, res.Sessions)
	if res.Challenges > 0 || res.Sessions > 0 {
		m.logger.Info("sweep finished", "challenges", res.Challenges, "sessions", res.Sessions)
	}
	return res, nil
}

// RunSweeper sweeps every interval until ctx is cancelled. A zero interval
// returns immediately.
func (m *Machine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// SendTestEmail mails a throwaway code to address without storing it.
func (m *Machine) SendTestEmail(ctx context.Context, address string) error {
	code, err := verification.GenerateCode(rand.Reader)
	if err != nil {
		return err
	}
	if err := m.mailer.SendCode(ctx, address, code, "Test"); err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpEmail)
		return &TransportError{Op: OpEmail, Err: err}
	}
	m.logger.Info("test email sent", "email", address)
	return nil
}

func (m *Machine) validateProfile(fullName, email string) *ValidationError {
	if n := utf8.RuneCountInString(fullName); n < 1 || n > MaxNameLength {
		m.opts.Metrics.Rejection(metrics.RejectName)
		return &ValidationError{Field: FieldName}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		m.opts.Metrics.Rejection(metrics.RejectEmailFormat)
		return &ValidationError{Field: FieldEmail}
	}
	if _, ok := MatchDomain(email, m.opts.AllowedDomains); !ok {
		m.opts.Metrics.Rejection(metrics.RejectDomain)
		return &ValidationError{Field: FieldDomain, Domains: m.opts.AllowedDomains}
	}
	return nil
}

// MatchDomain returns the allowed domain email belongs to. An address
// matches a domain when it ends in "@domain" or in ".domain".
func MatchDomain(email string, domains []string) (string, bool) {
	email = strings.ToLower(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "", false
	}
	host := email[at+1:]
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

// IdentityRole names the role granted to members verified with email.
func IdentityRole(email string, domains []string) string {
	if d, ok := MatchDomain(email, domains); ok {
		return d
	}
	return email[strings.LastIndexByte(email, '@')+1:]
}

// sendCode issues a code for s, stores s and mails the code. If mailing
// fails the code is withdrawn and s stays awaiting verification so a
// resend can retry.
func (m *Machine) sendCode(ctx context.Context, s *models.Session) error {
	issued, err := m.codes.Issue(ctx, s.UserID, s.Email, s.FullName)
	if err != nil {
		return m.storeError(err)
	}
	m.opts.Metrics.CodeIssued()

	s.Phase = models.PhaseAwaitingVerification
	s.LastCodeSentAt = m.opts.Now().UTC()
	if err := m.putSession(ctx, s); err != nil {
		return err
	}

	if err := m.mailer.SendCode(ctx, s.Email, issued.Code, s.FullName); err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpEmail)
		m.logger.Error("failed to send verification email", "user_id", s.UserID, "error", err)

		if rerr := m.codes.Revoke(ctx, s.UserID); rerr != nil {
			m.logger.Warn("failed to withdraw unsent code", "user_id", s.UserID, "error", rerr)
		}
		s.LastCodeSentAt = time.Time{}
		if perr := m.putSession(ctx, s); perr != nil {
			m.logger.Warn("failed to reset resend cooldown", "user_id", s.UserID, "error", perr)
		}
		return &TransportError{Op: OpEmail, Err: err}
	}

	m.logger.Info("verification code sent", "user_id", s.UserID, "email", s.Email)
	return nil
}

// verified runs the entry actions of the verified state. Failures are
// logged and never undo the verification.
func (m *Machine) verified(ctx context.Context, s *models.Session, result *verification.Result) {
	log := m.logger.With("user_id", s.UserID)

	if err := m.dir.SetNickname(ctx, s.UserID, result.FullName); err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpDirectory)
		log.Warn("failed to set nickname", "error", err)
	}

	name := IdentityRole(result.Email, m.opts.AllowedDomains)
	role, err := m.dir.FindRoleByName(ctx, name)
	if errors.Is(err, platform.ErrRoleNotFound) {
		role, err = m.dir.CreateRole(ctx, name)
		if err == nil {
			log.Info("identity role created", "role", name)
		}
	}
	if err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpDirectory)
		log.Warn("failed to resolve identity role", "role", name, "error", err)
	} else if err := m.dir.GrantRole(ctx, s.UserID, role.ID); err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpDirectory)
		log.Warn("failed to grant identity role", "role", name, "error", err)
	}

	log.Info("email verified", "email", result.Email)
	m.notify(ctx, i18n.TData(ctx, "audit_verified", map[string]any{
		"UserID": s.UserID,
		"Email":  result.Email,
	}))
}

func (m *Machine) enterCategories(ctx context.Context, s *models.Session) (*View, error) {
	s.Phase = models.PhaseCategorySelecting
	s.ActiveCategory = ""
	if err := m.putSession(ctx, s); err != nil {
		return nil, err
	}
	return categoriesView(ctx, m.catalog.Offered()), nil
}

func (m *Machine) revokeBaseRole(ctx context.Context, userID string) error {
	if m.opts.BaseRole == "" {
		return nil
	}
	role, err := m.dir.FindRoleByName(ctx, m.opts.BaseRole)
	if errors.Is(err, platform.ErrRoleNotFound) {
		m.logger.Warn("base role missing on platform", "role", m.opts.BaseRole)
		return nil
	}
	if err == nil {
		err = m.dir.RevokeRole(ctx, userID, role.ID)
	}
	if err != nil {
		m.opts.Metrics.TransportFailure(metrics.OpDirectory)
		m.logger.Error("failed to remove base role", "user_id", userID, "error", err)
		return &TransportError{Op: OpDirectory, Err: err}
	}
	return nil
}

// discard drops an unverified member's session and code.
func (m *Machine) discard(ctx context.Context, userID string) {
	if err := m.codes.Revoke(ctx, userID); err != nil {
		m.logger.Warn("failed to clear code", "user_id", userID, "error", err)
	}
	if err := m.store.DeleteSession(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("failed to clear session", "user_id", userID, "error", err)
	}
}

func (m *Machine) notify(ctx context.Context, message string) {
	if err := m.opts.Notifier.Publish(ctx, message); err != nil {
		m.logger.Warn("failed to publish audit message", "error", err)
	}
}

func (m *Machine) session(ctx context.Context, userID string) (*models.Session, error) {
	s, err := m.store.GetSession(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, m.storeError(err)
	}
	return s, nil
}

func (m *Machine) verifiedSession(ctx context.Context, userID string) (*models.Session, error) {
	s, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.Verified() {
		return nil, ErrNotVerified
	}
	return s, nil
}

func (m *Machine) putSession(ctx context.Context, s *models.Session) error {
	s.UpdatedAt = m.opts.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	if err := m.store.PutSession(ctx, s); err != nil {
		return m.storeError(err)
	}
	return nil
}

func (m *Machine) storeError(err error) error {
	m.opts.Metrics.TransportFailure(metrics.OpStore)
	return &TransportError{Op: OpStore, Err: fmt.Errorf("session store: %w", err)}
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
