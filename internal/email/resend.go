package email

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	resend "github.com/resend/resend-go/v3"
)

type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string, httpClient *http.Client) *ResendProvider {
	client := resend.NewClient(apiKey)
	if httpClient != nil {
		client = resend.NewCustomClient(httpClient, apiKey)
	}
	return &ResendProvider{from: from, client: client}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validate(email); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		Tags:    resendTags(email),
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}

// resendTags turns the category and metadata into Resend tags. Resend only
// accepts ASCII letters, digits, underscores and dashes in tag values.
func resendTags(email *Email) []resend.Tag {
	var tags []resend.Tag
	if email.Category != "" {
		tags = append(tags, resend.Tag{Name: "category", Value: tagValue(email.Category)})
	}
	names := make([]string, 0, len(email.Metadata))
	for name := range email.Metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tags = append(tags, resend.Tag{Name: tagValue(name), Value: tagValue(email.Metadata[name])})
	}
	return tags
}

func tagValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
