package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.buildRouter(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port, "env", s.cfg.AppEnv)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// buildRouter registers fixed prefixes before the catch-all /{store} routes.
// Store slugs that collide with those prefixes are rejected at creation.
func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.SessionMiddleware)
	r.Use(h.MetricsContext)
	r.Use(h.RequireSameOrigin)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods(http.MethodPost).Name("webhooks.stripe")

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", h.Register).Methods(http.MethodPost).Name("auth.register")
	auth.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet).Name("auth.login.page")
	auth.HandleFunc("/login", h.Login).Methods(http.MethodPost).Name("auth.login")
	auth.HandleFunc("/logout", h.Logout).Methods(http.MethodPost).Name("auth.logout")
	auth.HandleFunc("/me", h.Me).Methods(http.MethodGet).Name("auth.me")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stripe/webhook", h.StripeWebhook).Methods(http.MethodPost).Name("api.stripe.webhook")
	api.HandleFunc("/debug/store", h.DebugStore).Methods(http.MethodGet).Name("api.debug.store")
	checkout := api.NewRoute().Subrouter()
	checkout.Use(h.CheckoutRateLimit)
	checkout.HandleFunc("/checkout", h.PlaceOrder).Methods(http.MethodPost).Name("api.checkout")
	checkout.HandleFunc("/stripe/checkout", h.InitiatePayment).Methods(http.MethodPost).Name("api.stripe.checkout")

	dashboard := r.PathPrefix("/dashboard").Subrouter()
	dashboard.Use(h.RequireAuth)
	dashboard.HandleFunc("", h.DashboardSummary).Methods(http.MethodGet).Name("dashboard.summary")
	dashboard.HandleFunc("/stores", h.DashboardStores).Methods(http.MethodGet).Name("dashboard.stores")
	dashboard.HandleFunc("/stores", h.DashboardCreateStore).Methods(http.MethodPost).Name("dashboard.stores.create")
	dashboard.HandleFunc("/stores/{storeID}", h.DashboardStore).Methods(http.MethodGet).Name("dashboard.store")
	dashboard.HandleFunc("/stores/{storeID}/products", h.DashboardProducts).Methods(http.MethodGet).Name("dashboard.products")
	dashboard.HandleFunc("/stores/{storeID}/products", h.DashboardCreateProduct).Methods(http.MethodPost).Name("dashboard.products.create")
	dashboard.HandleFunc("/stores/{storeID}/products/{productID}", h.DashboardDeleteProduct).Methods(http.MethodDelete).Name("dashboard.products.delete")
	dashboard.HandleFunc("/stores/{storeID}/inventory", h.DashboardInventory).Methods(http.MethodGet).Name("dashboard.inventory")
	dashboard.HandleFunc("/stores/{storeID}/inventory", h.DashboardSetInventory).Methods(http.MethodPut).Name("dashboard.inventory.set")
	dashboard.HandleFunc("/stores/{storeID}/orders", h.DashboardOrders).Methods(http.MethodGet).Name("dashboard.orders")
	dashboard.HandleFunc("/stores/{storeID}/orders/{orderID}", h.DashboardOrder).Methods(http.MethodGet).Name("dashboard.order")

	store := r.PathPrefix("/{store}").Subrouter()
	store.HandleFunc("", h.StoreInfo).Methods(http.MethodGet).Name("store")
	store.HandleFunc("/products", h.StoreProducts).Methods(http.MethodGet).Name("store.products")
	store.HandleFunc("/products/{product}", h.StoreProduct).Methods(http.MethodGet).Name("store.product")
	store.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet).Name("store.cart")
	store.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete).Name("store.cart.clear")
	store.HandleFunc("/cart/items", h.AddCartItem).Methods(http.MethodPost).Name("store.cart.items.add")
	store.HandleFunc("/cart/items/{productID}", h.UpdateCartItem).Methods(http.MethodPatch).Name("store.cart.items.update")
	store.HandleFunc("/cart/items/{productID}", h.RemoveCartItem).Methods(http.MethodDelete).Name("store.cart.items.remove")
	store.HandleFunc("/cart/hydrate", h.HydrateCart).Methods(http.MethodPost).Name("store.cart.hydrate")
	store.HandleFunc("/cart/open", h.OpenCart).Methods(http.MethodPost).Name("store.cart.open")
	store.HandleFunc("/cart/close", h.CloseCart).Methods(http.MethodPost).Name("store.cart.close")
	store.HandleFunc("/checkout", h.CheckoutReturn).Methods(http.MethodGet).Name("store.checkout.return")
	store.HandleFunc("/orders", h.CustomerOrders).Methods(http.MethodGet).Name("store.orders")

	return r
}
