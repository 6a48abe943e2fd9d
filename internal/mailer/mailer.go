// Package mailer hands rendered notifications to a transactional email provider.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ToffenYT/varsly/internal/config"
)

var (
	// ErrNotConfigured provider credentials are missing
	ErrNotConfigured = errors.New("email provider not configured")
	// ErrRejected provider answered with a non-success status
	ErrRejected = errors.New("email rejected by provider")
)

// Message one outgoing email
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Provider delivers a message; nil error means the provider accepted it
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the provider named in cfg. Missing credentials yield ErrNotConfigured.
func New(cfg *config.MailConfig) (Provider, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("%w: SMTP_HOST is empty", ErrNotConfigured)
		}
		return NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			UseTLS:   cfg.SMTPUseTLS,
		}), nil
	default:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("%w: RESEND_API_KEY is empty", ErrNotConfigured)
		}
		return NewResend(&http.Client{Timeout: 15 * time.Second}, cfg.ResendAPIURL, cfg.ResendAPIKey), nil
	}
}
