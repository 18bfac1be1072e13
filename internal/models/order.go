package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
)

type Order struct {
	ID                      uuid.UUID       `json:"id"`
	StoreID                 uuid.UUID       `json:"store_id"`
	CustomerID              uuid.UUID       `json:"customer_id"`
	OrderNumber             string          `json:"order_number"`
	Status                  OrderStatus     `json:"status"`
	PaymentStatus           PaymentStatus   `json:"payment_status"`
	Total                   decimal.Decimal `json:"total"`
	Currency                string          `json:"currency"`
	StripeCheckoutSessionID string          `json:"stripe_checkout_session_id,omitempty"`
	Items                   []OrderItem     `json:"items,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	PaidAt                  time.Time       `json:"paid_at,omitzero"`
}

func (o *Order) IsPaid() bool {
	return o != nil && o.PaymentStatus == PaymentSucceeded
}

// OrderItem captures the unit price at order time.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type Payment struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	Provider          string          `json:"provider"`
	ProviderSessionID string          `json:"provider_session_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Payload           []byte          `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
}
