// Package mail sends notification emails through SMTP, SendGrid or the log.
package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/pkg/config"
)

// Message is a rendered email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// HasContent reports whether the message carries a body.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || strings.TrimSpace(m.HTML) != ""
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("mail: message has no recipients")
	}
	if !m.HasContent() {
		return fmt.Errorf("mail: message %q has no content", m.Subject)
	}
	return nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the sender configured by cfg.Driver.
func New(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	switch cfg.Driver {
	case "smtp":
		if cfg.SMTPUser == "" || cfg.SMTPPassword == "" {
			return nil, fmt.Errorf("mail: smtp driver requires SENDER_EMAIL and SENDER_PASSWORD")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, from), nil
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("mail: sendgrid driver requires SENDGRID_API_KEY")
		}
		return NewSendgridSender(cfg.SendgridAPIKey, from), nil
	case "console", "":
		return NewConsoleSender(logger), nil
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", cfg.Driver)
	}
}

// ParseRecipient turns a bare address into a mail.Address.
func ParseRecipient(raw string) (mail.Address, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return mail.Address{}, fmt.Errorf("mail: invalid recipient %q: %w", raw, err)
	}
	return *addr, nil
}
