package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/services"
)

const orderTokenHeader = "X-Order-Token"

// checkoutLine is one line of a checkout request. Clients commonly send the
// price they displayed; it is accepted and ignored.
type checkoutLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type placeOrderRequest struct {
	Store          string                `json:"store"`
	IdempotencyKey string                `json:"idempotency_key"`
	Items          []checkoutLine        `json:"items"`
	Guest          services.GuestContact `json:"guest"`
}

type initiatePaymentRequest struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderToken string    `json:"order_token"`
}

// PlaceOrder creates an order from the submitted lines, or from the
// visitor's stored cart when the request carries none. The local cart for
// the store is emptied once the order exists.
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	storeSlug := strings.TrimSpace(req.Store)
	if storeSlug == "" {
		writeError(w, http.StatusBadRequest, "store is required")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		idempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	}

	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}

	lines := make([]catalog.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, catalog.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		for _, item := range c.Items(storeSlug) {
			lines = append(lines, catalog.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	result, err := h.checkout.PlaceOrder(r.Context(), services.PlaceOrderInput{
		IdempotencyKey: idempotencyKey,
		StoreSlug:      storeSlug,
		Items:          lines,
		Shopper:        h.shopperFromRequest(r),
		Guest:          req.Guest,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := c.ClearStore(r.Context(), storeSlug); err != nil {
		h.loggerFromContext(r.Context()).Warn("failed to clear cart after order", "error", err, "order_id", result.OrderID)
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(r.Context(), w, status, result)
}

// InitiatePayment opens a hosted payment session for a placed order.
func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.OrderID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	token := strings.TrimSpace(req.OrderToken)
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(orderTokenHeader))
	}

	result, err := h.checkout.InitiatePayment(r.Context(), services.InitiatePaymentInput{
		OrderID:    req.OrderID,
		OrderToken: token,
		Shopper:    h.shopperFromRequest(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, result)
}

// CheckoutReturn reports the checkout state after the shopper comes back
// from the hosted payment page.
func (h *Handlers) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var outcome services.ReturnOutcome
	switch {
	case query.Get("success") == "1":
		outcome = services.ReturnSuccess
	case query.Get("canceled") == "1":
		outcome = services.ReturnCanceled
	default:
		writeError(w, http.StatusBadRequest, "success or canceled is required")
		return
	}

	orderID, err := uuid.Parse(strings.TrimSpace(query.Get("order")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	token := strings.TrimSpace(query.Get("token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(orderTokenHeader))
	}

	status, err := h.checkout.CompleteReturn(r.Context(), services.CompleteReturnInput{
		StoreSlug:  mux.Vars(r)["store"],
		OrderID:    orderID,
		OrderToken: token,
		Shopper:    h.shopperFromRequest(r),
		Outcome:    outcome,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, status)
}
