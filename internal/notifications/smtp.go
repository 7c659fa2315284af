package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPTransport struct {
	host     string
	port     int
	user     string
	password string
	from     string
	fromName string
}

func NewSMTPTransport(host string, port int, user, password, from, fromName string) *SMTPTransport {
	if from == "" {
		from = user
	}
	return &SMTPTransport{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

func (t *SMTPTransport) Driver() string {
	return "smtp"
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.user),
		mail.WithPassword(t.password),
		mail.WithTimeout(15 * time.Second),
	}
	if t.port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(t.host, opts...)
}

// Verify dials and authenticates once without sending.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp verify: %w", err)
	}
	return c.Close()
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, err.Error())
	}

	m := mail.NewMsg()
	if err := m.FromFormat(t.fromName, t.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return fmt.Errorf("smtp to: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return fmt.Errorf("smtp reply-to: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Close is a no-op: each send dials its own connection.
func (t *SMTPTransport) Close() error {
	return nil
}
