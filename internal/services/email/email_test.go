// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Test App",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := NewService(cfg, 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := NewService(cfg, 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestCodeMessage(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), language.English)
	m := svc.CodeMessage(ctx, "a.kumar@ds.study.iitm.ac.in", "482913", "A. Kumar")

	assert.Equal(t, "a.kumar@ds.study.iitm.ac.in", m.To)
	assert.Equal(t, "Your verification code", m.Subject)
	assert.Contains(t, m.Text, "482913")
	assert.Contains(t, m.Text, "A. Kumar")
	assert.Contains(t, m.Text, "10 minutes")
	assert.Contains(t, m.HTML, "<p")
	assert.Contains(t, m.HTML, "482913")
}

func TestCodeMessage_German(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 5*time.Minute)
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), language.German)
	m := svc.CodeMessage(ctx, "a@example.edu", "111111", "Anna")

	assert.Equal(t, "Dein Bestätigungscode", m.Subject)
	assert.Contains(t, m.Text, "5 Minuten")
}

func TestCodeMessage_EscapesNameInHTML(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	m := svc.CodeMessage(context.Background(), "a@example.edu", "123456", "<b>Eve</b>")

	assert.Contains(t, m.Text, "<b>Eve</b>")
	assert.NotContains(t, m.HTML, "<b>Eve</b>")
	assert.Contains(t, m.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
}

func TestBuild(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	msg, err := svc.build(&Message{
		To:      "a@example.edu",
		Subject: "Subject line",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Subject line")
	assert.Contains(t, raw, "Test App")
	assert.Contains(t, raw, "noreply@example.com")
	assert.Contains(t, raw, "<a@example.edu>")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "html body")
}

func TestBuild_InvalidRecipient(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), 10*time.Minute)
	require.NoError(t, err)

	_, err = svc.build(&Message{To: "not an address", Subject: "s", Text: "t"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*config.SMTPConfig)
		want int
	}{
		{"starttls with auth", func(*config.SMTPConfig) {}, 5},
		{"implicit tls", func(c *config.SMTPConfig) { c.Port = 465 }, 6},
		{"no tls no auth", func(c *config.SMTPConfig) {
			c.TLS = false
			c.Username = ""
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSMTPConfig()
			tt.cfg(cfg)
			svc, err := NewService(cfg, time.Minute)
			require.NoError(t, err)

			assert.Len(t, svc.clientOptions(), tt.want)
		})
	}
}

func TestSendCode_UnreachableServer(t *testing.T) {
	require.NoError(t, i18n.Init())
	cfg := validSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.TLS = false
	svc, err := NewService(cfg, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = svc.SendCode(ctx, "a@example.edu", "123456", "A")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending email")
}
