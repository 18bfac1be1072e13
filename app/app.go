package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/cart"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/crypto"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/email"
	"github.com/storefrontapp/storefront/internal/handlers"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/session"
	"github.com/storefrontapp/storefront/internal/stripe"
)

const outboundHTTPTimeout = 20 * time.Second

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	CartSync       *cart.SyncQueue
	Handlers       *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := initSentry(cfg); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: database}

	if cfg.AutoMigrate {
		if err := db.Migrate(startupCtx, database); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.CacheProvider, err = cache.NewProvider(cache.Config{
		Provider:      cfg.CacheProvider,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	// Sessions share the cache when both use the same backend.
	var sessionStore session.Store
	if cfg.SessionStoreProvider == cfg.CacheProvider {
		sessionStore = session.NewCacheStore(a.CacheProvider)
	} else {
		sessionStore, err = session.NewStore(cache.Config{
			Provider:      cfg.SessionStoreProvider,
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize session store: %w", err)
		}
	}
	a.SessionManager = session.NewManager(sessionStore, handlers.SecureCookiesFromConfig(cfg))

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize sealer: %w", err)
	}

	orderTokens, err := services.NewOrderTokens(cfg.OrderTokenSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize order tokens: %w", err)
	}

	mailer, err := email.NewProvider(email.Config{
		Provider:   cfg.EmailProvider,
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		HTTPClient: observability.NewHTTPClient("email", outboundHTTPTimeout),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	userStore := db.NewUserStore(database)
	storeStore := db.NewStoreStore(database)
	productStore := db.NewProductStore(database)
	inventoryStore := db.NewInventoryStore(database)
	customerStore := db.NewCustomerStore(database)
	cartStore := db.NewCartStore(database)
	orderStore := db.NewOrderStore(database)
	attemptStore := db.NewCheckoutAttemptStore(database)

	authService, err := services.NewAuthService(userStore, logger.With("component", "auth_service"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	payments := stripe.NewClient(cfg.StripeSecretKey, observability.NewHTTPClient("stripe", outboundHTTPTimeout))
	checkoutService := services.NewCheckoutService(
		storeStore,
		productStore,
		customerStore,
		cartStore,
		orderStore,
		attemptStore,
		payments,
		orderTokens,
		services.CheckoutConfig{BaseURL: cfg.BaseURL, Currency: cfg.Currency},
		logger.With("component", "checkout_service"),
	)
	webhookService := services.NewWebhookService(
		orderStore,
		storeStore,
		customerStore,
		a.CacheProvider,
		mailer,
		cfg.BaseURL,
		logger.With("component", "webhook_service"),
	)
	storefrontService := services.NewStorefrontService(storeStore, productStore, customerStore, orderStore, logger.With("component", "storefront_service"))
	dashboardService := services.NewDashboardService(storeStore, productStore, inventoryStore, orderStore, logger.With("component", "dashboard_service"))

	cartGateway := services.NewCartGateway(customerStore, cartStore, logger.With("component", "cart_gateway"))
	a.CartSync = cart.NewSyncQueue(context.Background(), cartGateway, logger.With("component", "cart_sync"))

	a.Handlers, err = handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		CacheProvider:  a.CacheProvider,
		Sealer:         sealer,
		SessionManager: a.SessionManager,
		Auth:           authService,
		Storefront:     storefrontService,
		Checkout:       checkoutService,
		Webhooks:       webhookService,
		Dashboard:      dashboardService,
		CartRemote:     cartGateway,
		CartSyncer:     a.CartSync,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return a, nil
}

// Migrate applies the embedded schema without starting any services.
func Migrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Migrate(ctx, pool)
}

// Close releases resources in reverse start order. Pending cart syncs are
// given a bounded window to finish before the database goes away.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Handlers != nil {
		a.Handlers.Close()
	}
	if a.CartSync != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.CartSync.Close(ctx); err != nil {
			a.Logger.Warn("cart sync did not drain", "error", err)
		}
		cancel()
	}
	if a.SessionManager != nil {
		if err := a.SessionManager.Close(); err != nil {
			a.Logger.Warn("failed to close session manager", "error", err)
		}
	}
	if a.CacheProvider != nil {
		if err := a.CacheProvider.Close(); err != nil {
			a.Logger.Warn("failed to close cache provider", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func initSentry(cfg *config.Config) error {
	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		EnableLogs:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if strings.TrimSpace(cfg.SentryDSN) != "" {
		handler = logging.MultiHandler(handler, sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
		}.NewSentryHandler(context.Background()))
	}
	return slog.New(handler)
}
