// Package email sends transactional mail through Resend or Postmark.
package email

import (
	"context"
	"fmt"
	"net/http"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Category groups messages in the provider dashboard.
	Category string
	Metadata map[string]string
}

type Config struct {
	Provider   string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

// NewProvider returns the configured provider, or a provider that drops
// every message when email is disabled.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return DisabledProvider{}, nil
	case "postmark":
		return NewPostmarkProvider(cfg.APIKey, cfg.From, cfg.HTTPClient), nil
	case "resend":
		return NewResendProvider(cfg.APIKey, cfg.From, cfg.HTTPClient), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'none', 'postmark' or 'resend'")
	}
}

type DisabledProvider struct{}

func (DisabledProvider) SendEmail(context.Context, *Email) error {
	return nil
}

func validate(email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	if email.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	if email.HTML == "" && email.Text == "" {
		return fmt.Errorf("email body is empty")
	}
	return nil
}
