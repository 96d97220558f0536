// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	setupMiddleware(e, jsonLogger(&buf))
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "/health", entry["uri"])
	assert.InDelta(t, 200, entry["status"], 0)
	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, entry["request_id"], rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(requestLogger(jsonLogger(&buf)))
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecover(t *testing.T) {
	e := echo.New()
	setupMiddleware(e, slog.New(slog.DiscardHandler))
	e.GET("/panic", func(c echo.Context) error {
		panic("handler exploded")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
