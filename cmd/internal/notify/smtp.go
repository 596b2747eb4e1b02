package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the bare sender address; it is rendered as "No Reply <From>".
	From string
}

// Validate reports missing fields.
func (c SMTPConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Host) == "":
		return fmt.Errorf("notify: smtp host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("notify: smtp port %d out of range", c.Port)
	case strings.TrimSpace(c.From) == "":
		return fmt.Errorf("notify: smtp from address is required")
	}
	return nil
}

type dialSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends plain-text mail through gomail.
type SMTPNotifier struct {
	dialer dialSender
	from   string
}

// NewSMTPNotifier validates cfg and builds a dialer. No connection is opened until Notify.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   fmt.Sprintf("No Reply <%s>", strings.TrimSpace(cfg.From)),
	}, nil
}

// Notify sends msg. gomail has no context support; ctx is only checked before dialing.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.dialer.DialAndSend(n.build(msg)); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}
