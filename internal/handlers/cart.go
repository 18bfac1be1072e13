package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/cart"
)

type addCartItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Store    string          `json:"store"`
	Items    []cart.Item     `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Open     bool            `json:"open"`
	Hydrated bool            `json:"hydrated,omitempty"`
}

// loadCart opens the visitor's cart in the configured storage. Signed-in
// shoppers also get server hydration and background sync.
func (h *Handlers) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, error) {
	var storage cart.Storage
	switch h.config.CartStorage {
	case "cookie":
		storage = cart.NewCookieStorage(h.sealer, w, r, SecureCookiesFromConfig(h.config))
	default:
		storage = cart.NewCacheStorage(h.cacheProvider)
	}

	var opts []cart.Option
	if shopper := h.shopperFromRequest(r); shopper != nil && h.cartRemote != nil && h.cartSyncer != nil {
		opts = append(opts, cart.WithShopper(*shopper, h.cartRemote, h.cartSyncer))
	}

	return cart.Load(r.Context(), storage, h.sessionManager.VisitorID(w, r), opts...)
}

func (h *Handlers) writeCart(w http.ResponseWriter, r *http.Request, status int, c *cart.Cart, hydrated bool) {
	storeSlug := mux.Vars(r)["store"]
	items := c.Items(storeSlug)
	if items == nil {
		items = []cart.Item{}
	}
	writeJSON(r.Context(), w, status, cartResponse{
		Store:    storeSlug,
		Items:    items,
		Total:    c.Total(storeSlug),
		Count:    c.Count(storeSlug),
		Open:     c.IsOpen(storeSlug),
		Hydrated: hydrated,
	})
}

func (h *Handlers) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrCartTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		h.writeServiceError(w, r, err)
	}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.storefront.Store(r.Context(), mux.Vars(r)["store"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}

// AddCartItem resolves the product server-side, so the line carries the
// catalog price rather than anything the client sent.
func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	productSlug := strings.TrimSpace(req.Product)
	if productSlug == "" {
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}

	storeSlug := mux.Vars(r)["store"]
	store, product, err := h.storefront.Product(r.Context(), storeSlug, productSlug)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	item := cart.Item{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Price:     product.Price,
		ImageURL:  product.ImageURL,
	}
	if err := c.AddItem(r.Context(), storeSlug, store.ID, item, req.Quantity); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(r, "productID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req updateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	if err := c.UpdateQuantity(r.Context(), mux.Vars(r)["store"], productID, req.Quantity); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(r, "productID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	if err := c.RemoveItem(r.Context(), mux.Vars(r)["store"], productID); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	if err := c.ClearStore(r.Context(), mux.Vars(r)["store"]); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}

// HydrateCart replaces the local cart with the shopper's server cart when
// one exists. Guests get their local cart back unchanged.
func (h *Handlers) HydrateCart(w http.ResponseWriter, r *http.Request) {
	storeSlug := mux.Vars(r)["store"]
	store, err := h.storefront.Store(r.Context(), storeSlug)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	hydrated, err := c.HydrateStore(r.Context(), storeSlug, store.ID)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, hydrated)
}

func (h *Handlers) OpenCart(w http.ResponseWriter, r *http.Request) {
	h.setCartOpen(w, r, true)
}

func (h *Handlers) CloseCart(w http.ResponseWriter, r *http.Request) {
	h.setCartOpen(w, r, false)
}

func (h *Handlers) setCartOpen(w http.ResponseWriter, r *http.Request, open bool) {
	c, err := h.loadCart(w, r)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	if err := c.SetOpen(r.Context(), mux.Vars(r)["store"], open); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, c, false)
}
