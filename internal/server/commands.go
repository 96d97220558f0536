// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/services/email"
	"github.com/urfave/cli/v3"
)

// Admin runs the admin subcommand named by cmd.Name against the guild
// over REST, without opening the gateway.
func Admin(ctx context.Context, cmd *cli.Command) error {
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

	out, err := a.bot.RunAdmin(ctx, cmd.Name, "")
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, out)
	return err
}

// TestEmail sends a test message to the address given as first argument.
// It needs only the SMTP settings.
func TestEmail(ctx context.Context, cmd *cli.Command) error {
	address := cmd.Args().First()
	if address == "" {
		return errors.New("usage: test-email <address>")
	}

	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.ValidateSMTP(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	svc, err := email.NewService(&cfg.SMTP, cfg.Onboarding.CodeTTL)
	if err != nil {
		return err
	}
	if err := svc.SendTest(ctx, address); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, i18n.TData(ctx, "admin_test_sent", map[string]any{"Email": address}))
	return err
}
