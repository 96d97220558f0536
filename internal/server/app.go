// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campusbot/onboard/internal/catalog"
	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/database"
	"github.com/campusbot/onboard/internal/discord"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/metrics"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/campusbot/onboard/internal/repository"
	"github.com/campusbot/onboard/internal/services/email"
	"github.com/campusbot/onboard/internal/services/verification"
	"github.com/campusbot/onboard/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds the wired components of a running bot.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	store    store.Store
	catalog  *catalog.Catalog
	machine  *onboarding.Machine
	bot      *discord.Bot
}

// openStore returns the store selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		repo := repository.New(db)
		version, err := repo.SchemaVersion()
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("reading schema version: %w", err)
		}
		logger.Info("database ready", "dsn", cfg.DSN, "schema_version", version)
		return repo, nil
	case config.DriverRedis:
		return store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case config.DriverMemory, "":
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newApp wires every component without connecting to the gateway.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	cat, err := catalog.Load(cfg.Onboarding.CatalogFile)
	if err != nil {
		return nil, err
	}

	mailer, err := email.NewService(&cfg.SMTP, cfg.Onboarding.CodeTTL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	dir := discord.NewDirectory(session, cfg.Discord.GuildID)

	codes := verification.New(st,
		verification.WithTTL(cfg.Onboarding.CodeTTL),
		verification.WithMaxAttempts(cfg.Onboarding.MaxAttempts),
	)

	machine := onboarding.New(st, codes, cat, dir, mailer, onboarding.Options{
		AllowedDomains: cfg.Onboarding.AllowedDomains,
		BaseRole:       cfg.Discord.BaseRole,
		ResendCooldown: cfg.Onboarding.ResendCooldown,
		SessionIdle:    cfg.Onboarding.SessionIdle,
		Logger:         logger,
		Metrics:        m,
		Notifier:       discord.NewNotifier(session, cfg.Discord.LogChannelID),
	})

	logger.Info("components ready",
		"store", cfg.Store.Driver,
		"categories", len(cat.Categories()),
		"allowed_domains", cfg.Onboarding.AllowedDomains,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    st,
		catalog:  cat,
		machine:  machine,
		bot:      discord.NewBot(session, cfg.Discord, machine, dir, logger),
	}, nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.store.Close()
}
