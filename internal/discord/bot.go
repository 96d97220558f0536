// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/campusbot/onboard/internal/onboarding"
	"github.com/campusbot/onboard/internal/platform"
)

// NewSession creates an unopened gateway session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

// Bot routes gateway events into the onboarding machine.
type Bot struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	machine *onboarding.Machine
	dir     *Directory
	logger  *slog.Logger

	// ctx is the lifetime of the bot; handlers derive from it.
	ctx      context.Context
	cancel   context.CancelFunc
	removers []func()
}

// NewBot creates a bot. The directory must belong to the same session.
func NewBot(s *discordgo.Session, cfg config.DiscordConfig, machine *onboarding.Machine, dir *Directory, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		session: s,
		cfg:     cfg,
		machine: machine,
		dir:     dir,
		logger:  logger.With("component", "discord"),
	}
}

// Start connects to the gateway, registers the admin command and loads the
// role catalog.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	b.removers = append(b.removers,
		b.session.AddHandler(b.onMemberAdd),
		b.session.AddHandler(b.onInteraction),
	)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway: %w", err)
	}

	if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.cfg.GuildID,
		adminCommand(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("registering admin command: %w", err)
	}

	if _, err := b.machine.RefreshCatalog(ctx); err != nil {
		b.logger.Error("initial catalog refresh failed", "error", err)
	}

	b.logger.Info("bot connected", "guild_id", b.cfg.GuildID, "user", b.session.State.User.Username)
	return nil
}

// Close disconnects from the gateway and cancels in-flight handlers.
func (b *Bot) Close() error {
	for _, remove := range b.removers {
		remove()
	}
	if b.cancel != nil {
		b.cancel()
	}
	return b.session.Close()
}

// Notifier posts audit messages to a channel.
type Notifier struct {
	session   *discordgo.Session
	channelID string
}

var _ platform.Notifier = (*Notifier)(nil)

// NewNotifier returns a notifier for channelID, or a platform.NopNotifier
// when channelID is empty.
func NewNotifier(s *discordgo.Session, channelID string) platform.Notifier {
	if channelID == "" {
		return platform.NopNotifier{}
	}
	return &Notifier{session: s, channelID: channelID}
}

// Publish sends message to the audit channel without pinging anyone.
func (n *Notifier) Publish(ctx context.Context, message string) error {
	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Content:         message,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return err
}

// onMemberAdd gives a new member the base role and sends the welcome view.
func (b *Bot) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != b.cfg.GuildID || m.User == nil || m.User.Bot {
		return
	}
	ctx := b.ctx
	log := b.logger.With("user_id", m.User.ID)

	if b.cfg.BaseRole != "" {
		role, err := b.dir.FindRoleByName(ctx, b.cfg.BaseRole)
		if err == nil {
			err = b.dir.GrantRole(ctx, m.User.ID, role.ID)
		}
		if err != nil {
			log.Warn("failed to assign base role", "error", err)
		}
	}

	if _, err := b.machine.RefreshCatalog(ctx); err != nil {
		log.Warn("catalog refresh on join failed", "error", err)
	}

	view, err := b.machine.Begin(ctx, m.User.ID)
	if err != nil {
		log.Error("failed to build welcome view", "error", err)
		return
	}
	msg := render(ctx, log, view)
	send := &discordgo.MessageSend{Content: msg.Content, Embeds: msg.Embeds, Components: msg.Components}

	dm, err := s.UserChannelCreate(m.User.ID, discordgo.WithContext(ctx))
	if err == nil {
		_, err = s.ChannelMessageSendComplex(dm.ID, send, discordgo.WithContext(ctx))
	}
	if err == nil {
		log.Info("welcome sent", "via", "dm")
		return
	}
	log.Info("dm failed, falling back to welcome channel", "error", err)

	if b.cfg.WelcomeChannelID == "" {
		return
	}
	send.Content = m.User.Mention()
	send.AllowedMentions = &discordgo.MessageAllowedMentions{Users: []string{m.User.ID}}
	if _, err := s.ChannelMessageSendComplex(b.cfg.WelcomeChannelID, send, discordgo.WithContext(ctx)); err != nil {
		log.Error("failed to send welcome", "error", err)
	}
}

// RunAdmin executes an admin subcommand and returns a localized summary.
func (b *Bot) RunAdmin(ctx context.Context, sub, address string) (string, error) {
	switch sub {
	case cmdRefreshRoles:
		n, err := b.machine.RefreshCatalog(ctx)
		if err != nil {
			return "", err
		}
		return i18n.TData(ctx, "admin_refreshed", map[string]any{"Count": n}), nil
	case cmdSyncPermissions:
		n, err := b.SyncPermissions(ctx)
		if err != nil {
			return "", err
		}
		return i18n.TData(ctx, "admin_synced", map[string]any{"Count": n}), nil
	case cmdTestEmail:
		if err := b.machine.SendTestEmail(ctx, address); err != nil {
			return "", err
		}
		return i18n.TData(ctx, "admin_test_sent", map[string]any{"Email": address}), nil
	case cmdSweep:
		res, err := b.machine.Sweep(ctx)
		if err != nil {
			return "", err
		}
		return i18n.TData(ctx, "admin_swept", map[string]any{
			"Challenges": res.Challenges,
			"Sessions":   res.Sessions,
		}), nil
	}
	return "", errors.New("unknown subcommand " + sub)
}
