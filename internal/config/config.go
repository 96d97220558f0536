// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	Log        LogConfig
	Discord    DiscordConfig
	SMTP       SMTPConfig
	Onboarding OnboardingConfig
	Store      StoreConfig
}

type ServerConfig struct {
	Host string
	Port int // 0 disables the health server
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DiscordConfig struct {
	Token            string
	GuildID          string
	WelcomeChannelID string
	LogChannelID     string // optional audit channel
	BaseRole         string // restricted role every new member starts with
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type OnboardingConfig struct { //nolint:govet // fieldalignment not critical for config structs
	AllowedDomains []string
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int // 0 means unlimited
	SweepInterval  time.Duration
	SessionIdle    time.Duration
	CatalogFile    string // empty uses the embedded catalog
}

type StoreConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Driver        string // memory, sqlite, redis
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

func NewFromCLI(cmd *cli.Command) *Config {
	return &Config{
		Server: ServerConfig{
			Host: cmd.String("host"),
			Port: int(cmd.Int("port")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Discord: DiscordConfig{
			Token:            cmd.String("discord-token"),
			GuildID:          cmd.String("discord-guild-id"),
			WelcomeChannelID: cmd.String("discord-welcome-channel-id"),
			LogChannelID:     cmd.String("discord-log-channel-id"),
			BaseRole:         cmd.String("discord-base-role"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Onboarding: OnboardingConfig{
			AllowedDomains: normalizeDomains(cmd.StringSlice("allowed-domains")),
			CodeTTL:        cmd.Duration("code-ttl"),
			ResendCooldown: cmd.Duration("resend-cooldown"),
			MaxAttempts:    int(cmd.Int("max-attempts")),
			SweepInterval:  cmd.Duration("sweep-interval"),
			SessionIdle:    cmd.Duration("session-idle"),
			CatalogFile:    cmd.String("catalog-file"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(cmd.String("store-driver")),
			DSN:           cmd.String("store-dsn"),
			RedisAddr:     cmd.String("redis-addr"),
			RedisPassword: cmd.String("redis-password"),
			RedisDB:       int(cmd.Int("redis-db")),
			RedisPrefix:   cmd.String("redis-prefix"),
		},
	}
}

// normalizeDomains lower-cases domains and strips a leading "@" or ".".
func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimLeft(d, "@.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Validate reports missing settings the bot cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord token is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord guild id is required"))
	}
	if c.Discord.WelcomeChannelID == "" {
		errs = append(errs, errors.New("discord welcome channel id is required"))
	}
	if c.Discord.BaseRole == "" {
		errs = append(errs, errors.New("discord base role is required"))
	}
	errs = append(errs, c.ValidateSMTP())
	if len(c.Onboarding.AllowedDomains) == 0 {
		errs = append(errs, errors.New("at least one allowed email domain is required"))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// ValidateSMTP checks only the settings needed to send mail.
func (c *Config) ValidateSMTP() error {
	var errs []error
	if c.SMTP.Host == "" {
		errs = append(errs, errors.New("SMTP host is required"))
	}
	if c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP from address is required"))
	}
	return errors.Join(errs...)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host for the health and metrics server",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port for the health and metrics server (0 disables it)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		// Discord flags
		&cli.StringFlag{
			Name:    "discord-token",
			Usage:   "Bot token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISCORD_TOKEN"), toml.TOML("discord.token", configFile)),
		},
		&cli.StringFlag{
			Name:    "discord-guild-id",
			Usage:   "Guild (server) the bot onboards members into",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISCORD_GUILD_ID"), toml.TOML("discord.guild_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "discord-welcome-channel-id",
			Usage:   "Channel new members can see before completing onboarding",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISCORD_WELCOME_CHANNEL_ID"), toml.TOML("discord.welcome_channel_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "discord-log-channel-id",
			Usage:   "Channel for onboarding audit messages (optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISCORD_LOG_CHANNEL_ID"), toml.TOML("discord.log_channel_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "discord-base-role",
			Value:   "Newcomer",
			Usage:   "Restricted role removed when onboarding completes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISCORD_BASE_ROLE"), toml.TOML("discord.base_role", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for verification emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS (implicit on port 465, STARTTLS otherwise)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Onboarding flags
		&cli.StringSliceFlag{
			Name:    "allowed-domains",
			Usage:   "Institutional email domains accepted for verification",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ALLOWED_DOMAINS"), toml.TOML("onboarding.allowed_domains", configFile)),
		},
		&cli.DurationFlag{
			Name:    "code-ttl",
			Value:   10 * time.Minute,
			Usage:   "How long a verification code stays valid",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CODE_TTL"), toml.TOML("onboarding.code_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "resend-cooldown",
			Value:   time.Minute,
			Usage:   "Minimum wait between code resends (0 disables it)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESEND_COOLDOWN"), toml.TOML("onboarding.resend_cooldown", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Value:   5,
			Usage:   "Wrong submissions before a code is discarded (0 means unlimited)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_ATTEMPTS"), toml.TOML("onboarding.max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Value:   15 * time.Minute,
			Usage:   "Interval of the background sweep (0 disables it)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SWEEP_INTERVAL"), toml.TOML("onboarding.sweep_interval", configFile)),
		},
		&cli.DurationFlag{
			Name:    "session-idle",
			Value:   24 * time.Hour,
			Usage:   "Sessions untouched this long are swept (0 disables it)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_IDLE"), toml.TOML("onboarding.session_idle", configFile)),
		},
		&cli.StringFlag{
			Name:    "catalog-file",
			Usage:   "TOML role catalog (defaults to the built-in catalog)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CATALOG_FILE"), toml.TOML("onboarding.catalog_file", configFile)),
		},
		// Store flags
		&cli.StringFlag{
			Name:    "store-driver",
			Value:   DriverMemory,
			Usage:   "Session and code store (memory, sqlite, redis)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STORE_DRIVER"), toml.TOML("store.driver", configFile)),
		},
		&cli.StringFlag{
			Name:    "store-dsn",
			Value:   "./data/onboard.db",
			Usage:   "SQLite DSN for the sqlite store",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STORE_DSN"), toml.TOML("store.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Value:   "localhost:6379",
			Usage:   "Redis address for the redis store",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_ADDR"), toml.TOML("store.redis_addr", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_PASSWORD"), toml.TOML("store.redis_password", configFile)),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_DB"), toml.TOML("store.redis_db", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-prefix",
			Value:   "onboard:",
			Usage:   "Key prefix for the redis store",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_PREFIX"), toml.TOML("store.redis_prefix", configFile)),
		},
	}
}
