// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func validConfig() *Config {
	return &Config{
		Discord: DiscordConfig{Token: "token", GuildID: "guild", WelcomeChannelID: "welcome", BaseRole: "Newcomer"},
		SMTP:    SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"},
		Onboarding: OnboardingConfig{
			AllowedDomains: []string{"ds.study.iitm.ac.in"},
		},
		Store: StoreConfig{Driver: DriverMemory},
	}
}

func TestNormalizeDomains(t *testing.T) {
	got := normalizeDomains([]string{" DS.Study.IITM.ac.in ", "@es.study.iitm.ac.in", ".example.edu", "", "  "})

	assert.Equal(t, []string{"ds.study.iitm.ac.in", "es.study.iitm.ac.in", "example.edu"}, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.Discord.Token = "" }, "discord token is required"},
		{"missing guild", func(c *Config) { c.Discord.GuildID = "" }, "discord guild id is required"},
		{"missing welcome channel", func(c *Config) { c.Discord.WelcomeChannelID = "" }, "discord welcome channel id is required"},
		{"missing base role", func(c *Config) { c.Discord.BaseRole = "" }, "discord base role is required"},
		{"missing smtp host", func(c *Config) { c.SMTP.Host = "" }, "SMTP host is required"},
		{"missing smtp from", func(c *Config) { c.SMTP.From = "" }, "SMTP from address is required"},
		{"no domains", func(c *Config) { c.Onboarding.AllowedDomains = nil }, "at least one allowed email domain"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "etcd" }, `unknown store driver "etcd"`},
		{"redis without addr", func(c *Config) { c.Store.Driver = DriverRedis }, "redis address is required"},
		{"redis with addr", func(c *Config) {
			c.Store.Driver = DriverRedis
			c.Store.RedisAddr = "localhost:6379"
		}, ""},
		{"sqlite", func(c *Config) { c.Store.Driver = DriverSQLite }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := (&Config{Store: StoreConfig{Driver: DriverMemory}}).Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord token")
	assert.Contains(t, err.Error(), "welcome channel")
	assert.Contains(t, err.Error(), "base role")
	assert.Contains(t, err.Error(), "SMTP host")
	assert.Contains(t, err.Error(), "allowed email domain")
}

func TestFlags(t *testing.T) {
	flags := Flags()

	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "log-level", "log-format",
		"discord-token", "discord-guild-id", "discord-base-role",
		"smtp-host", "smtp-from", "allowed-domains", "code-ttl",
		"resend-cooldown", "max-attempts", "sweep-interval",
		"store-driver", "store-dsn", "redis-addr",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, "Newcomer", cfg.Discord.BaseRole)
			assert.Equal(t, 587, cfg.SMTP.Port)
			assert.True(t, cfg.SMTP.TLS)
			assert.Equal(t, 10*time.Minute, cfg.Onboarding.CodeTTL)
			assert.Equal(t, time.Minute, cfg.Onboarding.ResendCooldown)
			assert.Equal(t, 5, cfg.Onboarding.MaxAttempts)
			assert.Equal(t, 24*time.Hour, cfg.Onboarding.SessionIdle)
			assert.Equal(t, DriverMemory, cfg.Store.Driver)
			assert.Equal(t, "onboard:", cfg.Store.RedisPrefix)

			// Required settings have no defaults.
			assert.Error(t, cfg.Validate())

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "tok", cfg.Discord.Token)
			assert.Equal(t, "42", cfg.Discord.GuildID)
			assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
			assert.Equal(t, "bot@example.com", cfg.SMTP.From)
			assert.Equal(t, []string{"ds.study.iitm.ac.in", "es.study.iitm.ac.in"}, cfg.Onboarding.AllowedDomains)
			assert.Equal(t, 0, cfg.Onboarding.MaxAttempts)
			assert.Equal(t, 30*time.Second, cfg.Onboarding.ResendCooldown)
			assert.Equal(t, DriverSQLite, cfg.Store.Driver)
			assert.Equal(t, "./data/test.db", cfg.Store.DSN)
			assert.NoError(t, cfg.Validate())

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--log-level", "debug",
		"--discord-token", "tok",
		"--discord-guild-id", "42",
		"--smtp-host", "smtp.example.com",
		"--smtp-from", "bot@example.com",
		"--allowed-domains", "DS.study.iitm.ac.in",
		"--allowed-domains", "@es.study.iitm.ac.in",
		"--max-attempts", "0",
		"--resend-cooldown", "30s",
		"--store-driver", "SQLite",
		"--store-dsn", "./data/test.db",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
