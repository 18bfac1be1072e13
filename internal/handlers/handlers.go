package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/cart"
	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/crypto"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/session"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

type pinger interface {
	Ping(ctx context.Context) error
}

type authService interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	User(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type storefrontService interface {
	Store(ctx context.Context, slug string) (*models.Store, error)
	Products(ctx context.Context, storeSlug string) (*models.Store, []*models.Product, error)
	Product(ctx context.Context, storeSlug, productSlug string) (*models.Store, *models.Product, error)
	CustomerOrders(ctx context.Context, storeSlug string, userID uuid.UUID) ([]*models.Order, error)
	DiagnoseStore(ctx context.Context, slug string) services.StoreDiagnostics
}

type checkoutService interface {
	PlaceOrder(ctx context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error)
	InitiatePayment(ctx context.Context, input services.InitiatePaymentInput) (*services.InitiatePaymentResult, error)
	CompleteReturn(ctx context.Context, input services.CompleteReturnInput) (*services.CheckoutStatus, error)
}

type webhookService interface {
	HandleStripeEvent(ctx context.Context, event *stripeapi.Event) error
}

type dashboardService interface {
	CreateStore(ctx context.Context, ownerID uuid.UUID, input catalog.StoreInput) (*models.Store, error)
	Stores(ctx context.Context, userID uuid.UUID) ([]*models.Store, error)
	Store(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error)
	CreateProduct(ctx context.Context, userID, storeID uuid.UUID, input catalog.ProductInput) (*models.Product, error)
	Products(ctx context.Context, userID, storeID uuid.UUID) ([]*models.Product, error)
	DeleteProduct(ctx context.Context, userID, storeID, productID uuid.UUID) error
	Inventory(ctx context.Context, userID, storeID uuid.UUID) ([]*models.InventoryItem, error)
	SetInventory(ctx context.Context, userID, storeID uuid.UUID, input services.InventoryInput) (*models.InventoryItem, error)
	Orders(ctx context.Context, userID, storeID uuid.UUID) ([]*models.Order, error)
	Order(ctx context.Context, userID, storeID, orderID uuid.UUID) (*services.OrderDetail, error)
	Summary(ctx context.Context, userID uuid.UUID) (*services.DashboardSummary, error)
}

// Handlers provides the HTTP handlers for the storefront API and the owner
// dashboard.
type Handlers struct {
	config          *config.Config
	db              pinger
	cacheProvider   cache.Provider
	sealer          crypto.Sealer
	sessionManager  *session.Manager
	auth            authService
	storefront      storefrontService
	checkout        checkoutService
	webhooks        webhookService
	dashboard       dashboardService
	cartRemote      cart.Remote
	cartSyncer      cart.Syncer
	checkoutLimiter *RateLimiter
	logger          *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             pinger
	CacheProvider  cache.Provider
	Sealer         crypto.Sealer
	SessionManager *session.Manager
	Auth           authService
	Storefront     storefrontService
	Checkout       checkoutService
	Webhooks       webhookService
	Dashboard      dashboardService
	CartRemote     cart.Remote
	CartSyncer     cart.Syncer
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("handlers dependencies: auth is required")
	}
	if deps.Storefront == nil {
		return nil, fmt.Errorf("handlers dependencies: storefront is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("handlers dependencies: webhooks is required")
	}
	if deps.Dashboard == nil {
		return nil, fmt.Errorf("handlers dependencies: dashboard is required")
	}
	switch deps.Config.CartStorage {
	case "cookie":
		if deps.Sealer == nil {
			return nil, fmt.Errorf("handlers dependencies: sealer is required for cookie cart storage")
		}
	default:
		if deps.CacheProvider == nil {
			return nil, fmt.Errorf("handlers dependencies: cacheProvider is required for cache cart storage")
		}
	}

	perMinute := deps.Config.CheckoutRatePerMinute
	if perMinute < 1 {
		perMinute = 20
	}

	return &Handlers{
		config:          deps.Config,
		db:              deps.DB,
		cacheProvider:   deps.CacheProvider,
		sealer:          deps.Sealer,
		sessionManager:  deps.SessionManager,
		auth:            deps.Auth,
		storefront:      deps.Storefront,
		checkout:        deps.Checkout,
		webhooks:        deps.Webhooks,
		dashboard:       deps.Dashboard,
		cartRemote:      deps.CartRemote,
		cartSyncer:      deps.CartSyncer,
		checkoutLimiter: NewRateLimiter(perMinute, perMinute),
		logger:          logger.With("component", "handlers"),
	}, nil
}

// Close stops background work owned by the handlers.
func (h *Handlers) Close() {
	if h.checkoutLimiter != nil {
		h.checkoutLimiter.Stop()
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unhealthy")
		return
	}

	status := map[string]string{"status": "healthy", "database": "ok"}
	if h.cacheProvider != nil {
		if err := h.cacheProvider.Ping(ctx); err != nil {
			logger.Error("cache health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "cache unhealthy")
			return
		}
		status["cache"] = "ok"
	}

	writeJSON(ctx, w, http.StatusOK, status)
}

// SessionMiddleware adds session data to the request context
func (h *Handlers) SessionMiddleware(next http.Handler) http.Handler {
	return h.sessionManager.Middleware(next)
}

func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return h.sessionManager.RequireAuth("/auth/login")(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func SecureCookiesFromConfig(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil {
			return strings.EqualFold(parsed.Scheme, "https")
		}
	}

	return cfg.Port == "443" || cfg.Port == "8443"
}
