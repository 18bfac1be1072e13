package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/session"
)

// ownerFromRequest returns the signed-in owner. Dashboard routes sit behind
// RequireAuth, so a missing session here is unexpected.
func (h *Handlers) ownerFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil || sess.UserID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return uuid.Nil, false
	}
	return sess.UserID, true
}

// dashboardStore returns the owner and the store id from the path.
func (h *Handlers) dashboardStore(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.ownerFromRequest(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	storeID, ok := pathUUID(r, "storeID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid store id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, storeID, true
}

func (h *Handlers) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownerFromRequest(w, r)
	if !ok {
		return
	}
	summary, err := h.dashboard.Summary(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, summary)
}

func (h *Handlers) DashboardStores(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownerFromRequest(w, r)
	if !ok {
		return
	}
	stores, err := h.dashboard.Stores(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if stores == nil {
		stores = []*models.Store{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]*models.Store{"stores": stores})
}

func (h *Handlers) DashboardCreateStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownerFromRequest(w, r)
	if !ok {
		return
	}
	var input catalog.StoreInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	store, err := h.dashboard.CreateStore(r.Context(), userID, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, map[string]*models.Store{"store": store})
}

func (h *Handlers) DashboardStore(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	store, err := h.dashboard.Store(r.Context(), userID, storeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]*models.Store{"store": store})
}

func (h *Handlers) DashboardProducts(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	products, err := h.dashboard.Products(r.Context(), userID, storeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]*models.Product{"products": products})
}

func (h *Handlers) DashboardCreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	var input catalog.ProductInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	product, err := h.dashboard.CreateProduct(r.Context(), userID, storeID, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, map[string]*models.Product{"product": product})
}

func (h *Handlers) DashboardDeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	productID, ok := pathUUID(r, "productID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.dashboard.DeleteProduct(r.Context(), userID, storeID, productID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DashboardInventory(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	items, err := h.dashboard.Inventory(r.Context(), userID, storeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.InventoryItem{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]*models.InventoryItem{"inventory": items})
}

func (h *Handlers) DashboardSetInventory(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	var input services.InventoryInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	item, err := h.dashboard.SetInventory(r.Context(), userID, storeID, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]*models.InventoryItem{"inventory_item": item})
}

func (h *Handlers) DashboardOrders(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	orders, err := h.dashboard.Orders(r.Context(), userID, storeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string][]*models.Order{"orders": orders})
}

func (h *Handlers) DashboardOrder(w http.ResponseWriter, r *http.Request) {
	userID, storeID, ok := h.dashboardStore(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	detail, err := h.dashboard.Order(r.Context(), userID, storeID, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, detail)
}
