// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers serves the bot's operational HTTP endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	catalog *catalog.Catalog
	metrics http.Handler
}

// New creates a new Handlers instance. A nil gatherer serves the default registry.
func New(cat *catalog.Catalog, gatherer prometheus.Gatherer) *Handlers {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		catalog: cat,
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status       string     `json:"status"`
	CatalogRoles int        `json:"catalog_roles"`
	RefreshedAt  *time.Time `json:"refreshed_at,omitempty"`
}

// Health returns the health status, how many catalog roles exist on the
// platform and when that was last checked.
func (h *Handlers) Health(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	if h.catalog != nil {
		resp.CatalogRoles = h.catalog.AvailableCount()
		if at := h.catalog.RefreshedAt(); !at.IsZero() {
			at = at.UTC()
			resp.RefreshedAt = &at
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Metrics exposes the Prometheus registry.
func (h *Handlers) Metrics(c echo.Context) error {
	h.metrics.ServeHTTP(c.Response(), c.Request())
	return nil
}
