package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/services"
)

const maxJSONBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx, nil).Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// writeServiceError maps service errors to a status code. Anything
// unrecognised is logged and reported without detail.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errMalformedBody),
		errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidCheckoutInput),
		errors.Is(err, services.ErrGuestEmailRequired),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidAuthInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrStoreAccessDenied),
		errors.Is(err, services.ErrOrderAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrStoreNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrSlugTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrCheckoutInProgress),
		errors.Is(err, services.ErrProductHasOrders):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPaymentUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
