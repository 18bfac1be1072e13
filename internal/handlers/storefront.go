package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/models"
)

type storeResponse struct {
	Store    *models.Store     `json:"store"`
	Products []*models.Product `json:"products,omitempty"`
}

func (h *Handlers) StoreInfo(w http.ResponseWriter, r *http.Request) {
	store, err := h.storefront.Store(r.Context(), mux.Vars(r)["store"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, storeResponse{Store: store})
}

func (h *Handlers) StoreProducts(w http.ResponseWriter, r *http.Request) {
	store, products, err := h.storefront.Products(r.Context(), mux.Vars(r)["store"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(r.Context(), w, http.StatusOK, storeResponse{Store: store, Products: products})
}

func (h *Handlers) StoreProduct(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	_, product, err := h.storefront.Product(r.Context(), vars["store"], vars["product"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]*models.Product{"product": product})
}

// CustomerOrders lists the signed-in shopper's order history for a store.
func (h *Handlers) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r.Context(), r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "sign in to view your orders")
		return
	}

	orders, err := h.storefront.CustomerOrders(r.Context(), mux.Vars(r)["store"], sess.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]*models.Order{"orders": orders})
}

// DebugStore exposes store lookup diagnostics outside production.
func (h *Handlers) DebugStore(w http.ResponseWriter, r *http.Request) {
	if h.config.IsProduction() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, h.storefront.DiagnoseStore(r.Context(), slug))
}
