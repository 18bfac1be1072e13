package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const postmarkAPIURL = "https://api.postmarkapp.com"

type PostmarkProvider struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

type postmarkMessage struct {
	From     string            `json:"From"`
	To       string            `json:"To"`
	Subject  string            `json:"Subject"`
	TextBody string            `json:"TextBody,omitempty"`
	HTMLBody string            `json:"HtmlBody,omitempty"`
	Tag      string            `json:"Tag,omitempty"`
	Metadata map[string]string `json:"Metadata,omitempty"`
}

type postmarkResult struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

func NewPostmarkProvider(apiKey, from string, httpClient *http.Client) *PostmarkProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PostmarkProvider{
		apiKey:  apiKey,
		from:    from,
		baseURL: postmarkAPIURL,
		client:  httpClient,
	}
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validate(email); err != nil {
		return err
	}

	body, err := json.Marshal(postmarkMessage{
		From:     p.from,
		To:       email.To,
		Subject:  email.Subject,
		TextBody: email.Text,
		HTMLBody: email.HTML,
		Tag:      email.Category,
		Metadata: email.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email via postmark: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read postmark response: %w", err)
	}

	var result postmarkResult
	decodeErr := json.Unmarshal(raw, &result)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.ErrorCode != 0 {
			return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
		}
		return fmt.Errorf("postmark API returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to parse postmark response: %w", decodeErr)
	}
	if result.ErrorCode != 0 {
		return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
	}
	return nil
}
