package models

import (
	"time"

	"github.com/google/uuid"
)

type CheckoutState string

const (
	CheckoutIdle             CheckoutState = "idle"
	CheckoutOrderCreated     CheckoutState = "order_created"
	CheckoutPaymentInitiated CheckoutState = "payment_initiated"
	CheckoutSuccess          CheckoutState = "success"
	CheckoutCanceled         CheckoutState = "canceled"
	CheckoutError            CheckoutState = "error"
)

// CheckoutAttempt is the persisted record of one checkout, keyed by the
// client's idempotency key.
type CheckoutAttempt struct {
	ID             uuid.UUID     `json:"id"`
	IdempotencyKey string        `json:"idempotency_key"`
	StoreID        uuid.UUID     `json:"store_id"`
	OrderID        *uuid.UUID    `json:"order_id,omitempty"`
	State          CheckoutState `json:"state"`
	SessionURL     string        `json:"session_url,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (a *CheckoutAttempt) HasOrder() bool {
	return a != nil && a.OrderID != nil && *a.OrderID != uuid.Nil
}
