package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/cart"
	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/stripe"
)

const (
	paymentProviderStripe = "stripe"
	maxIdempotencyKeyLen  = 200
	maxCheckoutLines      = 100
	maxLineQuantity       = math.MaxInt32
)

// maxOrderTotal is the first amount a NUMERIC(12,2) column cannot hold.
var maxOrderTotal = decimal.New(1, 10)

type checkoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type CheckoutConfig struct {
	BaseURL  string
	Currency string
}

type CheckoutService struct {
	stores    storeRepository
	products  productRepository
	customers customerRepository
	carts     cartRepository
	orders    orderRepository
	attempts  attemptRepository
	payments  checkoutSessionCreator
	tokens    *OrderTokens
	pricer    *catalog.Pricer
	validate  *validator.Validate
	baseURL   string
	currency  string
	now       func() time.Time
	logger    *slog.Logger
}

func NewCheckoutService(stores storeRepository, products productRepository, customers customerRepository, carts cartRepository, orders orderRepository, attempts attemptRepository, payments checkoutSessionCreator, tokens *OrderTokens, cfg CheckoutConfig, logger *slog.Logger) *CheckoutService {
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &CheckoutService{
		stores:    stores,
		products:  products,
		customers: customers,
		carts:     carts,
		orders:    orders,
		attempts:  attempts,
		payments:  payments,
		tokens:    tokens,
		pricer:    catalog.NewPricer(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		currency:  currency,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type GuestContact struct {
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	FullName string `json:"full_name" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=40"`
}

// PlaceOrderInput carries the product ids and quantities of a cart. Any
// prices the client holds are ignored.
type PlaceOrderInput struct {
	IdempotencyKey string
	StoreSlug      string
	Items          []catalog.LineRequest
	Shopper        *cart.Shopper
	Guest          GuestContact
}

type PlaceOrderResult struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	OrderToken     string          `json:"order_token"`
	IdempotencyKey string          `json:"idempotency_key"`
	Replayed       bool            `json:"replayed"`
}

// PlaceOrder creates the order for a checkout attempt. A repeated call with
// the same idempotency key returns the order created by the first one.
func (s *CheckoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.place_order",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("PlaceOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("checkout.order.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	store, err := s.publicStore(ctx, input.StoreSlug)
	if err != nil {
		recordFailure("store_lookup_failed")
		return nil, err
	}
	meter.SetAttributes(attribute.String("store", store.Slug))

	if len(input.Items) == 0 {
		recordFailure("empty_cart")
		return nil, ErrEmptyCart
	}
	if len(input.Items) > maxCheckoutLines {
		recordFailure("too_many_lines")
		return nil, fmt.Errorf("%w: too many cart lines", ErrInvalidCheckoutInput)
	}

	contact, err := s.checkoutContact(input)
	if err != nil {
		recordFailure("invalid_contact")
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	if len(key) > maxIdempotencyKeyLen {
		recordFailure("invalid_idempotency_key")
		return nil, fmt.Errorf("%w: idempotency key is too long", ErrInvalidCheckoutInput)
	}

	attempt, created, err := s.attempts.Begin(ctx, key, store.ID)
	if err != nil {
		recordFailure("attempt_failed")
		return nil, fmt.Errorf("failed to start checkout: %w", err)
	}
	if attempt.StoreID != store.ID {
		recordFailure("idempotency_key_reused")
		return nil, fmt.Errorf("%w: idempotency key was used for another store", ErrInvalidCheckoutInput)
	}
	if !created && attempt.HasOrder() {
		meter.Count("checkout.order.replayed", 1)
		return s.replay(ctx, attempt)
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity > maxLineQuantity {
			recordFailure("quantity_out_of_range")
			return nil, s.failAttempt(ctx, attempt, fmt.Errorf("%w: quantity is too large", ErrInvalidCheckoutInput))
		}
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, store.ID, ids)
	if err != nil {
		recordFailure("product_lookup_failed")
		return nil, s.failAttempt(ctx, attempt, fmt.Errorf("failed to load products: %w", err))
	}

	priced := s.pricer.Price(input.Items, products)
	if priced.Empty() {
		recordFailure("no_purchasable_items")
		return nil, ErrEmptyCart
	}
	if err := checkOrderBounds(priced); err != nil {
		recordFailure("amount_out_of_range")
		return nil, s.failAttempt(ctx, attempt, err)
	}
	currency, err := s.orderCurrency(priced)
	if err != nil {
		recordFailure("mixed_currencies")
		return nil, s.failAttempt(ctx, attempt, err)
	}

	customer, err := resolveCustomer(ctx, s.customers, store.ID, contact)
	if err != nil {
		recordFailure("customer_failed")
		return nil, s.failAttempt(ctx, attempt, err)
	}

	order := &models.Order{
		StoreID:       store.ID,
		CustomerID:    customer.ID,
		OrderNumber:   fmt.Sprintf("ORD-%d", s.now().UnixMilli()),
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		Total:         priced.Total,
		Currency:      currency,
		Items:         make([]models.OrderItem, 0, len(priced.Lines)),
	}
	for _, line := range priced.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
		})
	}
	payment := &models.Payment{
		Provider: paymentProviderStripe,
		Status:   models.PaymentPending,
		Amount:   order.Total,
		Currency: order.Currency,
	}

	if err := s.orders.CreateForAttempt(ctx, attempt.ID, order, payment); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return s.resolveConcurrentAttempt(ctx, key)
		}
		recordFailure("order_insert_failed")
		return nil, s.failAttempt(ctx, attempt, fmt.Errorf("failed to create order: %w", err))
	}

	if contact.UserID != nil {
		s.convertActiveCart(ctx, store.ID, customer.ID)
	}

	token, err := s.tokens.Sign(order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order token: %w", err)
	}

	meter.Count("checkout.order.created", 1)
	logger.Info("order placed",
		"order_id", order.ID.String(),
		"order_number", order.OrderNumber,
		"store_id", store.ID.String(),
		"total", order.Total.StringFixed(2),
	)

	return &PlaceOrderResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Total:          order.Total,
		Currency:       order.Currency,
		OrderToken:     token,
		IdempotencyKey: key,
	}, nil
}

func (s *CheckoutService) checkoutContact(input PlaceOrderInput) (customerContact, error) {
	if input.Shopper != nil && input.Shopper.UserID != uuid.Nil {
		userID := input.Shopper.UserID
		return customerContact{
			UserID:   &userID,
			Email:    input.Shopper.Email,
			FullName: input.Shopper.FullName,
		}, nil
	}

	guest := input.Guest
	guest.Email = strings.ToLower(strings.TrimSpace(guest.Email))
	if guest.Email == "" {
		return customerContact{}, ErrGuestEmailRequired
	}
	if err := s.validate.Struct(guest); err != nil {
		return customerContact{}, fmt.Errorf("%w: a valid email is required", ErrInvalidCheckoutInput)
	}
	return customerContact{
		Email:    guest.Email,
		FullName: guest.FullName,
		Phone:    guest.Phone,
	}, nil
}

// orderCurrency returns the single currency the priced lines are sold in.
// A cart spanning several currencies cannot be charged as one order.
func (s *CheckoutService) orderCurrency(priced catalog.PricedCart) (string, error) {
	currency := ""
	for _, line := range priced.Lines {
		c := strings.ToUpper(strings.TrimSpace(line.Product.Currency))
		if c == "" {
			c = s.currency
		}
		if currency != "" && c != currency {
			return "", fmt.Errorf("%w: cart mixes %s and %s prices", ErrInvalidCheckoutInput, currency, c)
		}
		currency = c
	}
	if currency == "" {
		currency = s.currency
	}
	return currency, nil
}

// checkOrderBounds rejects quantities and amounts the order tables cannot store.
func checkOrderBounds(priced catalog.PricedCart) error {
	for _, line := range priced.Lines {
		if line.Quantity > maxLineQuantity {
			return fmt.Errorf("%w: quantity is too large", ErrInvalidCheckoutInput)
		}
		if line.Total.Abs().GreaterThanOrEqual(maxOrderTotal) {
			return fmt.Errorf("%w: line total is too large", ErrInvalidCheckoutInput)
		}
	}
	if priced.Total.Abs().GreaterThanOrEqual(maxOrderTotal) {
		return fmt.Errorf("%w: order total is too large", ErrInvalidCheckoutInput)
	}
	return nil
}

func (s *CheckoutService) replay(ctx context.Context, attempt *models.CheckoutAttempt) (*PlaceOrderResult, error) {
	order, err := s.orders.GetByID(ctx, *attempt.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order for replay: %w", err)
	}
	token, err := s.tokens.Sign(order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order token: %w", err)
	}

	return &PlaceOrderResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Total:          order.Total,
		Currency:       order.Currency,
		OrderToken:     token,
		IdempotencyKey: attempt.IdempotencyKey,
		Replayed:       true,
	}, nil
}

// resolveConcurrentAttempt handles losing the race for an attempt: the
// winner's order is returned once it exists.
func (s *CheckoutService) resolveConcurrentAttempt(ctx context.Context, key string) (*PlaceOrderResult, error) {
	attempt, err := s.attempts.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to reload checkout attempt: %w", err)
	}
	if attempt.HasOrder() {
		return s.replay(ctx, attempt)
	}
	return nil, ErrCheckoutInProgress
}

func (s *CheckoutService) failAttempt(ctx context.Context, attempt *models.CheckoutAttempt, cause error) error {
	if err := s.attempts.SetState(ctx, attempt.ID, models.CheckoutError, cause.Error()); err != nil {
		s.loggerFromContext(ctx).Warn("failed to record checkout error", "attempt_id", attempt.ID.String(), "error", err)
	}
	return cause
}

func (s *CheckoutService) convertActiveCart(ctx context.Context, storeID, customerID uuid.UUID) {
	logger := s.loggerFromContext(ctx)

	active, err := s.carts.FindActive(ctx, storeID, customerID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logger.Warn("failed to look up active cart", "error", err)
		}
		return
	}
	if err := s.carts.MarkConverted(ctx, active.ID); err != nil {
		logger.Warn("failed to mark cart converted", "cart_id", active.ID.String(), "error", err)
	}
}

type InitiatePaymentInput struct {
	OrderID    uuid.UUID
	OrderToken string
	Shopper    *cart.Shopper
}

type InitiatePaymentResult struct {
	OrderID     uuid.UUID `json:"order_id"`
	SessionID   string    `json:"session_id,omitempty"`
	CheckoutURL string    `json:"url"`
}

// InitiatePayment opens a hosted payment page for a placed order. Line
// items and redirect URLs are derived from the stored order only.
func (s *CheckoutService) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*InitiatePaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.initiate_payment",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("InitiatePayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_id", input.OrderID.String())
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("checkout.session.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	order, err := s.accessibleOrder(ctx, input.OrderID, input.OrderToken, input.Shopper)
	if err != nil {
		recordFailure("order_access")
		return nil, err
	}
	if order.Status != models.StatusPending || order.IsPaid() {
		recordFailure("order_not_pending")
		return nil, fmt.Errorf("%w: order is no longer awaiting payment", ErrInvalidCheckoutInput)
	}
	if len(order.Items) == 0 {
		recordFailure("order_without_items")
		return nil, ErrEmptyCart
	}

	attempt, err := s.attempts.GetByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		recordFailure("attempt_lookup_failed")
		return nil, fmt.Errorf("failed to load checkout attempt: %w", err)
	}
	if attempt != nil && attempt.State == models.CheckoutPaymentInitiated && attempt.SessionURL != "" {
		meter.Count("checkout.session.reused", 1)
		return &InitiatePaymentResult{
			OrderID:     order.ID,
			SessionID:   order.StripeCheckoutSessionID,
			CheckoutURL: attempt.SessionURL,
		}, nil
	}

	store, err := s.stores.GetByID(ctx, order.StoreID)
	if err != nil {
		recordFailure("store_lookup_failed")
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	customer, err := s.customers.GetByID(ctx, order.CustomerID)
	if err != nil {
		recordFailure("customer_lookup_failed")
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	returnToken, err := s.tokens.Sign(order.ID)
	if err != nil {
		recordFailure("token_sign_failed")
		return nil, fmt.Errorf("failed to sign order token: %w", err)
	}

	lineItems := make([]stripe.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, stripe.LineItem{
			Name:      item.ProductName,
			UnitPrice: item.UnitPrice,
			Quantity:  int64(item.Quantity),
		})
	}

	session, err := s.payments.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		OrderID:       order.ID,
		StoreID:       order.StoreID,
		Currency:      order.Currency,
		CustomerEmail: customer.Email,
		LineItems:     lineItems,
		SuccessURL:    s.returnURL(store.Slug, order.ID, ReturnSuccess, returnToken),
		CancelURL:     s.returnURL(store.Slug, order.ID, ReturnCanceled, returnToken),
	})
	if err != nil {
		recordFailure("stripe_session_failed")
		logger.Error("failed to create checkout session", "error", err)
		if attempt != nil {
			if stateErr := s.attempts.SetState(ctx, attempt.ID, models.CheckoutError, err.Error()); stateErr != nil {
				logger.Warn("failed to record checkout error", "error", stateErr)
			}
		}
		return nil, ErrPaymentUnavailable
	}

	if err := s.orders.RecordCheckoutSession(ctx, order.ID, session.ID, session.URL); err != nil {
		recordFailure("session_persist_failed")
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return nil, fmt.Errorf("%w: order is no longer awaiting payment", ErrInvalidCheckoutInput)
		}
		return nil, fmt.Errorf("failed to record checkout session: %w", err)
	}

	meter.Count("checkout.session.created", 1)
	logger.Info("checkout session created", "session_id", session.ID)

	return &InitiatePaymentResult{
		OrderID:     order.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// returnURL carries the order token so a guest returning from the hosted
// page can be matched to the order without a session.
func (s *CheckoutService) returnURL(storeSlug string, orderID uuid.UUID, outcome ReturnOutcome, token string) string {
	query := url.Values{}
	query.Set(string(outcome), "1")
	query.Set("order", orderID.String())
	query.Set("token", token)
	return s.baseURL + "/" + url.PathEscape(storeSlug) + "/checkout?" + query.Encode()
}

type ReturnOutcome string

const (
	ReturnSuccess  ReturnOutcome = "success"
	ReturnCanceled ReturnOutcome = "canceled"
)

type CompleteReturnInput struct {
	StoreSlug  string
	OrderID    uuid.UUID
	OrderToken string
	Shopper    *cart.Shopper
	Outcome    ReturnOutcome
}

type CheckoutStatus struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	State         models.CheckoutState `json:"state"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal      `json:"total"`
	Currency      string               `json:"currency"`
}

// CompleteReturn records where the shopper landed after the hosted page.
// Order and payment status are left to the webhook, so a success redirect
// can report a payment that is still pending.
func (s *CheckoutService) CompleteReturn(ctx context.Context, input CompleteReturnInput) (*CheckoutStatus, error) {
	store, err := s.publicStore(ctx, input.StoreSlug)
	if err != nil {
		return nil, err
	}

	order, err := s.accessibleOrder(ctx, input.OrderID, input.OrderToken, input.Shopper)
	if err != nil {
		return nil, err
	}
	if order.StoreID != store.ID {
		return nil, ErrOrderNotFound
	}

	status := &CheckoutStatus{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		Currency:      order.Currency,
	}

	attempt, err := s.attempts.GetByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return status, nil
		}
		return nil, fmt.Errorf("failed to load checkout attempt: %w", err)
	}
	status.State = attempt.State

	var next models.CheckoutState
	switch input.Outcome {
	case ReturnSuccess:
		next = models.CheckoutSuccess
	case ReturnCanceled:
		next = models.CheckoutCanceled
	default:
		return status, nil
	}
	if attempt.State == next || attempt.State == models.CheckoutSuccess {
		return status, nil
	}

	if err := s.attempts.SetState(ctx, attempt.ID, next, ""); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return status, nil
		}
		return nil, fmt.Errorf("failed to record checkout outcome: %w", err)
	}
	status.State = next

	observability.MeterFromContext(ctx).Count("checkout.return", 1, sentry.WithAttributes(
		attribute.String("outcome", string(next)),
	))
	return status, nil
}

func (s *CheckoutService) publicStore(ctx context.Context, slug string) (*models.Store, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrStoreNotFound
	}
	store, err := s.stores.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	if !store.IsPublic {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

// accessibleOrder loads an order the caller may act on, either through the
// order token from PlaceOrder or as the signed-in customer who placed it.
func (s *CheckoutService) accessibleOrder(ctx context.Context, orderID uuid.UUID, token string, shopper *cart.Shopper) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if s.tokens.Verify(token, order.ID) {
		return order, nil
	}
	if shopper != nil && shopper.UserID != uuid.Nil {
		customer, err := s.customers.FindByUser(ctx, order.StoreID, shopper.UserID)
		if err == nil && customer.ID == order.CustomerID {
			return order, nil
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up customer: %w", err)
		}
	}
	return nil, ErrOrderAccessDenied
}
