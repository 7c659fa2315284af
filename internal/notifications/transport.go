package notifications

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoTransport  = errors.New("no mail transport configured")
	ErrInvalidEmail = errors.New("invalid email message")
)

type Message struct {
	To      string
	ToName  string
	ReplyTo string
	Subject string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("missing recipient email")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("missing subject")
	}
	if strings.TrimSpace(m.HTML) == "" {
		return errors.New("missing html body")
	}
	return nil
}

// Transport delivers a single message through one mail account.
type Transport interface {
	Driver() string
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
	Close() error
}
