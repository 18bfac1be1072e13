// Package stripe creates hosted checkout sessions and verifies webhooks.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"
)

const (
	MetadataOrderID = "order_id"
	MetadataStoreID = "store_id"
)

type Client struct {
	api *stripeapi.Client
}

// NewClient builds a Stripe client. A non-nil httpClient replaces the
// default transport for every API call.
func NewClient(secretKey string, httpClient *http.Client) *Client {
	var opts []stripeapi.ClientOption
	if httpClient != nil {
		opts = append(opts, stripeapi.WithBackends(stripeapi.NewBackendsWithConfig(&stripeapi.BackendConfig{
			HTTPClient: httpClient,
		})))
	}
	return &Client{api: stripeapi.NewClient(secretKey, opts...)}
}

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

type CheckoutSessionParams struct {
	OrderID       uuid.UUID
	StoreID       uuid.UUID
	Currency      string
	CustomerEmail string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession opens a hosted payment page for one order. The
// request is idempotent per order, so retries return the same session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.LineItems) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}

	lineItems := make([]*stripeapi.CheckoutSessionCreateLineItemParams, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripeapi.CheckoutSessionCreateLineItemParams{
			PriceData: &stripeapi.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripeapi.String(currency),
				ProductData: &stripeapi.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripeapi.String(item.Name),
				},
				UnitAmount: stripeapi.Int64(MinorUnits(item.UnitPrice, currency)),
			},
			Quantity: stripeapi.Int64(quantity),
		})
	}

	orderID := params.OrderID.String()
	sessionParams := &stripeapi.CheckoutSessionCreateParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(params.SuccessURL),
		CancelURL:         stripeapi.String(params.CancelURL),
		ClientReferenceID: stripeapi.String(orderID),
		LineItems:         lineItems,
		Metadata: map[string]string{
			MetadataOrderID: orderID,
			MetadataStoreID: params.StoreID.String(),
		},
	}
	if email := strings.TrimSpace(params.CustomerEmail); email != "" {
		sessionParams.CustomerEmail = stripeapi.String(email)
	}
	sessionParams.SetIdempotencyKey("checkout-session-" + orderID)

	session, err := c.api.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

// MinorUnits converts a decimal amount to the integer amount Stripe expects
// for currency, rounding half away from zero. Zero-decimal currencies are
// sent as whole units and three-decimal currencies in thousandths ending in 0.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	currency = strings.ToLower(strings.TrimSpace(currency))
	switch {
	case zeroDecimalCurrencies[currency]:
		return amount.Round(0).IntPart()
	case threeDecimalCurrencies[currency]:
		return amount.Shift(2).Round(0).IntPart() * 10
	default:
		return amount.Shift(2).Round(0).IntPart()
	}
}
