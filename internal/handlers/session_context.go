package handlers

import (
	"context"
	"net/http"

	"github.com/storefrontapp/storefront/internal/cart"
	"github.com/storefrontapp/storefront/internal/session"
)

func (h *Handlers) sessionFromRequest(ctx context.Context, r *http.Request) *session.Data {
	if ctx == nil {
		ctx = context.Background()
	}
	if sess := session.FromContext(ctx); sess != nil {
		return sess
	}
	if h == nil || h.sessionManager == nil || r == nil {
		return nil
	}
	sess, err := h.sessionManager.GetSession(ctx, r)
	if err != nil {
		return nil
	}
	return sess
}

// shopperFromRequest returns the signed-in shopper, or nil for guests.
func (h *Handlers) shopperFromRequest(r *http.Request) *cart.Shopper {
	sess := h.sessionFromRequest(r.Context(), r)
	if sess == nil {
		return nil
	}
	return &cart.Shopper{
		UserID:   sess.UserID,
		Email:    sess.Email,
		FullName: sess.FullName,
	}
}
