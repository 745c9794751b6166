// Package email delivers bills over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/ledgerline/billrun/internal/common"
	"github.com/ledgerline/billrun/internal/service"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Username string
	Password string
	Port     int
}

// SMTPSender delivers email through a single SMTP server.
type SMTPSender struct {
	config Config
}

// NewSMTPSender creates a sender for the given SMTP server.
func NewSMTPSender(config Config) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("smtp host cannot be empty")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPSender{config: config}, nil
}

// Send delivers one email, including attachments, over SMTP. Transient
// delivery failures are retried with backoff.
func (s *SMTPSender) Send(ctx context.Context, email service.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	message, err := buildMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	recipients := append(append([]string{}, email.To...), email.CC...)

	err = common.WithRetry(ctx, func() error {
		return smtp.SendMail(addr, auth, email.From, recipients, message)
	}, common.RetryOptions{})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
