package notifications

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smarthub-backend/internal/config"
)

func TestNewMailerFromConfig(t *testing.T) {
	cfg := &config.Config{
		AdminEmail:  "owner@smarthub.test",
		MailRetries: 3,
		MailPrimary: config.MailAccount{
			Driver: config.MailDriverSMTP, Host: "smtp.test", Port: 587, User: "u", Password: "p", From: "hello@smarthub.test",
		},
		MailSecondary: config.MailAccount{Driver: config.MailDriverBrevo, From: "noreply@smarthub.test"},
	}

	m := NewMailerFromConfig(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	assert.Equal(t, "owner@smarthub.test", m.AdminEmail())
	assert.Equal(t, 3, m.opts.Retries)

	statuses := m.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, Primary, statuses[0].Account)
	assert.True(t, statuses[0].Configured)
	assert.Equal(t, "smtp", statuses[0].Driver)
	assert.False(t, statuses[1].Configured)

	cfg.MailSecondary.APIKey = "key"
	m = NewMailerFromConfig(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	assert.True(t, m.Status()[1].Configured)
	assert.Equal(t, "brevo", m.Status()[1].Driver)
}
