package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "disabled", provider: "none"},
		{name: "empty means disabled", provider: ""},
		{name: "resend", provider: "resend"},
		{name: "postmark", provider: "postmark"},
		{name: "unknown", provider: "mailgun", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, err := NewProvider(Config{Provider: tt.provider, APIKey: "key", From: "shop@example.com"})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil || provider == nil {
				t.Fatalf("expected provider, got %v", err)
			}
		})
	}
}

func TestPostmarkProviderSendEmail(t *testing.T) {
	t.Parallel()

	var received postmarkMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/email" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Postmark-Server-Token"); got != "token" {
			t.Errorf("unexpected token %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"m-1"}`))
	}))
	defer server.Close()

	provider := NewPostmarkProvider("token", "shop@example.com", server.Client())
	provider.baseURL = server.URL

	err := provider.SendEmail(context.Background(), &Email{
		To:       "buyer@example.com",
		Subject:  "Hi",
		Text:     "Body",
		Category: "order_confirmation",
		Metadata: map[string]string{"store": "acme"},
	})
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if received.To != "buyer@example.com" || received.From != "shop@example.com" {
		t.Fatalf("unexpected message: %+v", received)
	}
	if received.Tag != "order_confirmation" || received.Metadata["store"] != "acme" {
		t.Fatalf("expected category and metadata to be forwarded, got %+v", received)
	}
}

func TestPostmarkProviderReportsAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer server.Close()

	provider := NewPostmarkProvider("token", "shop@example.com", server.Client())
	provider.baseURL = server.URL

	err := provider.SendEmail(context.Background(), &Email{To: "buyer@example.com", Subject: "Hi", Text: "Body"})
	if err == nil || !strings.Contains(err.Error(), "postmark error (300)") {
		t.Fatalf("expected postmark error, got %v", err)
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	mail, err := RenderOrderConfirmation("buyer@example.com", OrderConfirmation{
		OrderNumber:  "ORD-1",
		StoreName:    "Acme <Goods>",
		StoreSlug:    "acme",
		CustomerName: "Ada",
		OrderURL:     "https://shop.example.com/acme/checkout?order=1",
		Currency:     "USD",
		Total:        "25.00",
		Items: []ConfirmationLine{
			{Name: "Widget", Quantity: 2, UnitPrice: "10.00", Total: "20.00"},
		},
	})
	if err != nil {
		t.Fatalf("RenderOrderConfirmation: %v", err)
	}

	if mail.Subject != "Order ORD-1 confirmed - Acme <Goods>" {
		t.Fatalf("unexpected subject %q", mail.Subject)
	}
	if !strings.Contains(mail.Text, "Widget x2 @ 10.00 = 20.00") {
		t.Fatalf("text body missing line: %q", mail.Text)
	}
	if !strings.Contains(mail.HTML, "Acme &lt;Goods&gt;") {
		t.Fatalf("html body must escape store name: %q", mail.HTML)
	}
	if mail.Category != "order_confirmation" || mail.Metadata["order_number"] != "ORD-1" {
		t.Fatalf("unexpected category or metadata: %q %v", mail.Category, mail.Metadata)
	}
}

func TestResendTags(t *testing.T) {
	t.Parallel()

	tags := resendTags(&Email{
		Category: "order_confirmation",
		Metadata: map[string]string{"store": "acme-goods", "order_number": "ORD 1"},
	})

	want := []struct{ name, value string }{
		{"category", "order_confirmation"},
		{"order_number", "ORD_1"},
		{"store", "acme-goods"},
	}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %d", len(want), len(tags))
	}
	for i, w := range want {
		if tags[i].Name != w.name || tags[i].Value != w.value {
			t.Fatalf("tag %d: expected %s=%s, got %s=%s", i, w.name, w.value, tags[i].Name, tags[i].Value)
		}
	}
}

func TestDisabledProviderDropsMail(t *testing.T) {
	t.Parallel()

	if err := (DisabledProvider{}).SendEmail(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
