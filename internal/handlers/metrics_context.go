package handlers

import (
	"net/http"

	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/observability"
)

// MetricsContext adds a request-scoped, pre-attributed meter to the context.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		attrs := []attribute.Builder{
			attribute.String("http.request_id", requestIDFromRequest(r)),
			attribute.String("http.method", r.Method),
			attribute.String("network.client.ip", clientIP(r)),
		}
		if route := routeLabel(r); route != "" {
			attrs = append(attrs, attribute.String("http.route", route))
		}
		if storeSlug := mux.Vars(r)["store"]; storeSlug != "" {
			attrs = append(attrs, attribute.String("store.slug", storeSlug))
		}
		if sess := h.sessionFromRequest(ctx, r); sess != nil && sess.UserID != uuid.Nil {
			attrs = append(attrs, attribute.String("user.id", sess.UserID.String()))
		}

		next.ServeHTTP(w, r.WithContext(observability.WithMeter(ctx, attrs...)))
	})
}
