// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds a tint logger for text output or a JSON logger for "json".
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := parseLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: opts})
	}
	return slog.New(handler)
}

// setupLogger configures the global slog logger.
func setupLogger(level, format string) *slog.Logger {
	logger := newLogger(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}
