package handlers

import (
	"net/http"

	stripeclient "github.com/storefrontapp/storefront/internal/stripe"
)

// StripeWebhook verifies the event signature before handing the event to
// the webhook service. Failures are reported with 500 so the provider
// retries delivery.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripeclient.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Warn("rejected Stripe webhook", "error", err)
		writeError(w, http.StatusBadRequest, "invalid webhook")
		return
	}
	if event.ID == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	if err := h.webhooks.HandleStripeEvent(ctx, event); err != nil {
		logger.Error("failed to process Stripe webhook", "error", err, "event_id", event.ID, "type", event.Type)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]bool{"received": true})
}
