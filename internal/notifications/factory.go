package notifications

import (
	"log/slog"

	"smarthub-backend/internal/config"
)

func transportFor(acc config.MailAccount) Transport {
	if !acc.Configured() {
		return nil
	}
	switch acc.Driver {
	case config.MailDriverBrevo:
		return NewBrevoTransport(acc.APIKey, acc.From, acc.FromName)
	case config.MailDriverSMTP:
		return NewSMTPTransport(acc.Host, acc.Port, acc.User, acc.Password, acc.From, acc.FromName)
	default:
		return nil
	}
}

// NewMailerFromConfig builds a mailer for the configured accounts. Accounts
// without credentials are left out and reported as not configured.
func NewMailerFromConfig(cfg *config.Config, log *slog.Logger) *Mailer {
	transports := map[Account]Transport{}
	if t := transportFor(cfg.MailPrimary); t != nil {
		transports[Primary] = t
	}
	if t := transportFor(cfg.MailSecondary); t != nil {
		transports[Secondary] = t
	}
	return NewMailer(log, Options{
		Retries:    cfg.MailRetries,
		AdminEmail: cfg.AdminEmail,
	}, transports)
}
