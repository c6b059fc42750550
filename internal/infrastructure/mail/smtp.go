package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

// SMTPMailer delivers HTML mail through an authenticated relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer fails with domain.ErrMailNotConfigured when credentials are missing.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, domain.ErrMailNotConfigured
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send opens a connection, delivers one message and closes it.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient %s: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.User),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
