package stripe

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84/webhook"
)

const completedPayload = `{"id":"evt_test","object":"event","api_version":"2026-01-28.clover","type":"checkout.session.completed","data":{"object":{"id":"cs_test","object":"checkout.session","payment_status":"paid","client_reference_id":"ref-order","metadata":{"order_id":"meta-order"},"customer_details":{"email":"buyer@example.com"}}}}`

func TestReadWebhookEvent_MissingSignature(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewBufferString(`{}`))
	_, err := ReadWebhookEvent(req, "whsec_test")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestReadWebhookEvent_WrongSecret(t *testing.T) {
	t.Parallel()

	payload := []byte(completedPayload)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)

	if _, err := ReadWebhookEvent(req, "whsec_test_secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestReadWebhookEvent_Valid(t *testing.T) {
	t.Parallel()

	secret := "whsec_test_secret"
	payload := []byte(completedPayload)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)

	event, err := ReadWebhookEvent(req, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil || event.ID != "evt_test" {
		t.Fatalf("unexpected event: %+v", event)
	}

	session, err := DecodeCompletedSession(event)
	if err != nil {
		t.Fatalf("DecodeCompletedSession: %v", err)
	}
	if !session.IsPaid() {
		t.Fatalf("expected paid session")
	}
	if got := session.OrderReference(); got != "meta-order" {
		t.Fatalf("expected metadata order id, got %q", got)
	}
	if session.CustomerEmail != "buyer@example.com" {
		t.Fatalf("expected customer email from details, got %q", session.CustomerEmail)
	}
}

func TestCompletedSessionOrderReferenceFallback(t *testing.T) {
	t.Parallel()

	session := &CompletedSession{ClientReferenceID: "ref-order", Metadata: map[string]string{}}
	if got := session.OrderReference(); got != "ref-order" {
		t.Fatalf("expected client reference fallback, got %q", got)
	}
	if (&CompletedSession{PaymentStatus: "unpaid"}).IsPaid() {
		t.Fatalf("unpaid session reported as paid")
	}
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{amount: "10", currency: "usd", want: 1000},
		{amount: "19.99", currency: "USD", want: 1999},
		{amount: "0.005", currency: "eur", want: 1},
		{amount: "0", currency: "usd", want: 0},
		{amount: "1000", currency: "JPY", want: 1000},
		{amount: "999.5", currency: "krw", want: 1000},
		{amount: "1.234", currency: "kwd", want: 1230},
	}
	for _, tt := range tests {
		if got := MinorUnits(decimal.RequireFromString(tt.amount), tt.currency); got != tt.want {
			t.Fatalf("MinorUnits(%s, %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}
