package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

var ErrInvalidSignature = errors.New("stripe webhook signature is invalid")

// ReadWebhookEvent reads the request body and verifies its signature before
// anything in it is trusted.
func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrInvalidSignature)
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &event, nil
}

// CompletedSession is the subset of a checkout.session.completed payload
// needed to settle an order.
type CompletedSession struct {
	ID                string
	PaymentStatus     string
	ClientReferenceID string
	Metadata          map[string]string
	CustomerEmail     string
}

func (s *CompletedSession) IsPaid() bool {
	return s != nil && s.PaymentStatus == string(stripeapi.CheckoutSessionPaymentStatusPaid)
}

// OrderReference returns the order id from metadata, falling back to the
// client reference id.
func (s *CompletedSession) OrderReference() string {
	if s == nil {
		return ""
	}
	if id := s.Metadata[MetadataOrderID]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

func DecodeCompletedSession(event *stripeapi.Event) (*CompletedSession, error) {
	if event == nil || event.Data == nil {
		return nil, fmt.Errorf("event has no data")
	}

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	completed := &CompletedSession{
		ID:                session.ID,
		PaymentStatus:     string(session.PaymentStatus),
		ClientReferenceID: session.ClientReferenceID,
		Metadata:          session.Metadata,
		CustomerEmail:     session.CustomerEmail,
	}
	if completed.CustomerEmail == "" && session.CustomerDetails != nil {
		completed.CustomerEmail = session.CustomerDetails.Email
	}
	return completed, nil
}
