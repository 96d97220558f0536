// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers verification codes over SMTP.
package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service sends verification and test emails.
type Service struct {
	cfg *config.SMTPConfig
	ttl time.Duration
}

// NewService creates a new email service. ttl is the code lifetime quoted
// in the message body.
func NewService(cfg *config.SMTPConfig, ttl time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{cfg: cfg, ttl: ttl}, nil
}

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// CodeMessage renders the verification email for code.
func (s *Service) CodeMessage(ctx context.Context, to, code, displayName string) *Message {
	minutes := int(s.ttl.Round(time.Minute) / time.Minute)
	data := map[string]any{"Name": displayName, "Code": code, "Minutes": minutes}
	htmlData := map[string]any{"Name": html.EscapeString(displayName), "Code": code, "Minutes": minutes}

	return &Message{
		To:      to,
		Subject: i18n.T(ctx, "email_code_subject"),
		Text:    i18n.TData(ctx, "email_code_body", data),
		HTML:    i18n.TData(ctx, "email_code_html", htmlData),
	}
}

// SendCode emails a verification code to the given address.
func (s *Service) SendCode(ctx context.Context, to, code, displayName string) error {
	return s.send(ctx, s.CodeMessage(ctx, to, code, displayName))
}

// SendTest sends a short message to check the SMTP settings.
func (s *Service) SendTest(ctx context.Context, to string) error {
	return s.send(ctx, &Message{
		To:      to,
		Subject: i18n.T(ctx, "email_test_subject"),
		Text:    i18n.T(ctx, "email_test_body"),
	})
}

// build turns m into a go-mail message.
func (s *Service) build(m *Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

// clientOptions maps the SMTP config onto go-mail client options.
func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// send delivers m via SMTP using go-mail.
func (s *Service) send(ctx context.Context, m *Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
