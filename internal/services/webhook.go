package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/email"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/stripe"
)

const webhookDedupeTTL = 24 * time.Hour

// WebhookService settles orders from verified Stripe events. It is the only
// writer of the paid and succeeded statuses.
type WebhookService struct {
	orders    orderRepository
	stores    storeRepository
	customers customerRepository
	dedupe    cache.Provider
	mailer    email.Provider
	baseURL   string
	logger    *slog.Logger
}

func NewWebhookService(orders orderRepository, stores storeRepository, customers customerRepository, dedupe cache.Provider, mailer email.Provider, baseURL string, logger *slog.Logger) *WebhookService {
	if mailer == nil {
		mailer = email.DisabledProvider{}
	}
	return &WebhookService{
		orders:    orders,
		stores:    stores,
		customers: customers,
		dedupe:    dedupe,
		mailer:    mailer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

func (s *WebhookService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// HandleStripeEvent processes an event whose signature was already
// verified. Events that cannot be matched to an order are acknowledged
// without writes; only storage failures are returned.
func (s *WebhookService) HandleStripeEvent(ctx context.Context, event *stripeapi.Event) error {
	span := sentry.StartSpan(
		ctx,
		"service.webhook.handle_stripe_event",
		sentry.WithOpName("service.webhook"),
		sentry.WithDescription("HandleStripeEvent"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("event_id", event.ID, "event_type", string(event.Type))
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("event_type", string(event.Type)))

	dedupeKey := ""
	if s.dedupe != nil && event.ID != "" {
		dedupeKey = cache.WebhookKey("stripe", event.ID)
		claimed, err := s.dedupe.SetIfAbsent(ctx, dedupeKey, "1", webhookDedupeTTL)
		switch {
		case err != nil:
			logger.Warn("webhook dedupe unavailable", "error", err)
			dedupeKey = ""
		case !claimed:
			meter.Count("webhook.stripe.duplicate", 1)
			logger.Info("duplicate webhook event ignored")
			return nil
		}
	}

	var err error
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		err = s.handleCheckoutSessionCompleted(ctx, logger, event)
	default:
		meter.Count("webhook.stripe.ignored", 1)
		logger.Debug("ignoring webhook event")
	}

	if err != nil {
		meter.Count("webhook.stripe.failed", 1)
		if dedupeKey != "" {
			if delErr := s.dedupe.Delete(ctx, dedupeKey); delErr != nil {
				logger.Warn("failed to release webhook dedupe key", "error", delErr)
			}
		}
		return err
	}
	return nil
}

func (s *WebhookService) handleCheckoutSessionCompleted(ctx context.Context, logger *slog.Logger, event *stripeapi.Event) error {
	meter := observability.MeterFromContext(ctx)
	skip := func(reason string, args ...any) error {
		meter.Count("webhook.checkout.skipped", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
		logger.Warn("checkout session not applied", append([]any{"reason", reason}, args...)...)
		return nil
	}

	session, err := stripe.DecodeCompletedSession(event)
	if err != nil {
		return skip("malformed_session", "error", err)
	}
	logger = logger.With("session_id", session.ID)

	reference := session.OrderReference()
	if reference == "" {
		return skip("missing_order_id")
	}
	orderID, err := uuid.Parse(reference)
	if err != nil {
		return skip("invalid_order_id", "order_ref", reference)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return skip("unknown_order", "order_id", orderID.String())
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if !session.IsPaid() {
		logger.Info("checkout session completed without payment", "order_id", order.ID.String(), "payment_status", session.PaymentStatus)
		meter.Count("webhook.checkout.unpaid", 1)
		return nil
	}

	paid, err := s.orders.MarkPaid(ctx, order.ID, event.Data.Raw)
	if err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return skip("order_not_payable", "order_id", order.ID.String(), "status", string(order.Status))
		}
		if errors.Is(err, db.ErrNotFound) {
			return skip("unknown_order", "order_id", order.ID.String())
		}
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if !paid {
		meter.Count("webhook.checkout.already_paid", 1)
		logger.Info("order already paid", "order_id", order.ID.String())
		return nil
	}

	meter.Count("webhook.checkout.paid", 1)
	logger.Info("order paid", "order_id", order.ID.String(), "order_number", order.OrderNumber)

	s.sendConfirmation(ctx, logger, order, session.CustomerEmail)
	return nil
}

func (s *WebhookService) sendConfirmation(ctx context.Context, logger *slog.Logger, order *models.Order, fallbackEmail string) {
	store, err := s.stores.GetByID(ctx, order.StoreID)
	if err != nil {
		logger.Warn("failed to load store for confirmation email", "error", err)
		return
	}

	to, name := fallbackEmail, ""
	if customer, err := s.customers.GetByID(ctx, order.CustomerID); err == nil {
		if customer.Email != "" {
			to = customer.Email
		}
		name = customer.FullName
	}
	if to == "" {
		logger.Warn("no recipient for confirmation email", "order_id", order.ID.String())
		return
	}

	lines := make([]email.ConfirmationLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, email.ConfirmationLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Total:     item.Total.StringFixed(2),
		})
	}

	message, err := email.RenderOrderConfirmation(to, email.OrderConfirmation{
		OrderNumber:  order.OrderNumber,
		StoreName:    store.Name,
		StoreSlug:    store.Slug,
		CustomerName: name,
		OrderURL:     s.baseURL + "/" + url.PathEscape(store.Slug) + "/orders",
		Currency:     order.Currency,
		Total:        order.Total.StringFixed(2),
		Items:        lines,
	})
	if err != nil {
		logger.Error("failed to render confirmation email", "error", err)
		return
	}

	if err := s.mailer.SendEmail(ctx, message); err != nil {
		observability.MeterFromContext(ctx).Count("email.confirmation.failed", 1)
		logger.Error("failed to send confirmation email", "error", err, "order_id", order.ID.String())
		return
	}
	observability.MeterFromContext(ctx).Count("email.confirmation.sent", 1)
}
