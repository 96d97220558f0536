// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the onboarding bot together and runs it next to a
// small health and metrics HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/handlers"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Run starts the bot and the health server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("failed to close store", "error", closeErr)
		}
	}()

	if err := a.bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	defer func() {
		if closeErr := a.bot.Close(); closeErr != nil {
			logger.Error("failed to close gateway", "error", closeErr)
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.machine.RunSweeper(sweepCtx, cfg.Onboarding.SweepInterval)

	e := newEcho(handlers.New(a.catalog, a.registry), logger)
	return startWithGracefulShutdown(e, cfg, logger)
}

func newEcho(h *handlers.Handlers, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, logger)
	setupRoutes(e, h)
	return e
}

func setupRoutes(e *echo.Echo, h *handlers.Handlers) {
	e.GET("/health", h.Health)
	e.GET("/metrics", h.Metrics)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config, logger *slog.Logger) error {
	errChan := make(chan error, 1)

	if cfg.Server.Port > 0 {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			logger.Info("health server running", "addr", addr)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("shutting down")
	case err := <-errChan:
		logger.Error("health server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown health server", "error", err)
	}

	logger.Info("stopped")
	return nil
}
