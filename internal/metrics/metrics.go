// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes onboarding counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "onboard"

// Validation outcomes.
const (
	ResultOk          = "ok"
	ResultNotFound    = "not_found"
	ResultExpired     = "expired"
	ResultMismatch    = "mismatch"
	ResultLockedOut   = "locked_out"
	ResultError       = "error"
	ActionGrant       = "grant"
	ActionRevoke      = "revoke"
	ActionDenied      = "denied"
	OpEmail           = "email"
	OpDirectory       = "directory"
	OpStore           = "store"
	RejectDomain      = "domain"
	RejectName        = "name"
	RejectEmailFormat = "email_format"
)

// Metrics holds the onboarding collectors. A nil *Metrics records nothing.
type Metrics struct {
	codesIssued       prometheus.Counter
	validations       *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	toggles           *prometheus.CounterVec
	completions       prometheus.Counter
	transportFailures *prometheus.CounterVec
	swept             *prometheus.CounterVec
	catalogRoles      prometheus.Gauge
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_issued_total",
			Help:      "Verification codes generated and handed to the mailer",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_validations_total",
			Help:      "Verification code submissions by outcome",
		}, []string{"result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_rejections_total",
			Help:      "Profile submissions rejected before any state change",
		}, []string{"reason"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_toggles_total",
			Help:      "Role toggles by action",
		}, []string{"action"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Members who finished onboarding",
		}),
		transportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_failures_total",
			Help:      "Failed calls to external collaborators",
		}, []string{"op"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_total",
			Help:      "Records removed by the sweep",
		}, []string{"kind"}),
		catalogRoles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_available_roles",
			Help:      "Catalog roles that exist on the platform after the last refresh",
		}),
	}

	m.codesIssued = register(reg, m.codesIssued)
	m.validations = register(reg, m.validations)
	m.rejections = register(reg, m.rejections)
	m.toggles = register(reg, m.toggles)
	m.completions = register(reg, m.completions)
	m.transportFailures = register(reg, m.transportFailures)
	m.swept = register(reg, m.swept)
	m.catalogRoles = register(reg, m.catalogRoles)

	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// CodeIssued counts one generated code.
func (m *Metrics) CodeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

// Validation counts one code submission with the given result.
func (m *Metrics) Validation(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

// Rejection counts one rejected profile submission.
func (m *Metrics) Rejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// Toggle counts one role toggle.
func (m *Metrics) Toggle(action string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(action).Inc()
}

// Completion counts one finished onboarding.
func (m *Metrics) Completion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// TransportFailure counts one failed collaborator call.
func (m *Metrics) TransportFailure(op string) {
	if m == nil {
		return
	}
	m.transportFailures.WithLabelValues(op).Inc()
}

// Swept adds a sweep's removals.
func (m *Metrics) Swept(challenges, sessions int) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues("challenge").Add(float64(challenges))
	m.swept.WithLabelValues("session").Add(float64(sessions))
}

// CatalogRoles records the size of the available-roles snapshot.
func (m *Metrics) CatalogRoles(n int) {
	if m == nil {
		return
	}
	m.catalogRoles.Set(float64(n))
}
