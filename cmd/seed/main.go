package main

// Loads demo stores, products and stock from a YAML seed file.
//
//	go run ./cmd/seed --store=demo-store --reset

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
)

type seedConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	StoreSlug     string `env:"SEED_STORE_SLUG" envDefault:"demo-store"`
	OwnerEmail    string `env:"SEED_OWNER_EMAIL"`
	OwnerPassword string `env:"SEED_OWNER_PASSWORD" envDefault:"Password123!"`
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))

	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to load env file", "file", file, "error", err)
		}
	}

	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Error("failed to parse seed config", "error", err)
		os.Exit(1)
	}

	storeSlug := flag.String("store", cfg.StoreSlug, "slug of the store to seed")
	reset := flag.Bool("reset", false, "delete the store and its orders before seeding")
	seedPath := flag.String("file", "seed.yaml", "path to the YAML seed file")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, logger, cfg, *seedPath, *storeSlug, *reset); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg seedConfig, seedPath, storeSlug string, reset bool) error {
	content, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	seed, err := catalog.NewParser().Parse(content)
	if err != nil {
		return err
	}
	seedStore, ok := seed.Store(storeSlug)
	if !ok {
		return fmt.Errorf("seed file has no store %q", storeSlug)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	users := db.NewUserStore(pool)
	stores := db.NewStoreStore(pool)

	owner, err := ensureOwner(ctx, logger, users, seed.Owner, cfg, storeSlug)
	if err != nil {
		return err
	}

	if reset {
		if err := stores.DeleteBySlug(ctx, storeSlug); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		logger.Info("store reset", "slug", storeSlug)
	}

	if existing, err := stores.GetBySlug(ctx, storeSlug); err == nil {
		logger.Info("store already seeded, use --reset to rebuild it", "slug", existing.Slug, "store_id", existing.ID)
		return nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to look up store: %w", err)
	}

	dashboard := services.NewDashboardService(stores, db.NewProductStore(pool), db.NewInventoryStore(pool), db.NewOrderStore(pool), logger)

	public := true
	storeInput := seedStore.Input()
	storeInput.Slug = storeSlug
	storeInput.IsPublic = &public
	store, err := dashboard.CreateStore(ctx, owner.ID, storeInput)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	for _, seedProduct := range seedStore.Products {
		product, err := dashboard.CreateProduct(ctx, owner.ID, store.ID, seedProduct.Input())
		if err != nil {
			return fmt.Errorf("failed to create product %q: %w", seedProduct.Name, err)
		}
		if seedProduct.SKU == "" && seedProduct.Stock == 0 {
			continue
		}
		if _, err := dashboard.SetInventory(ctx, owner.ID, store.ID, services.InventoryInput{
			ProductID: product.ID,
			SKU:       seedProduct.SKU,
			Quantity:  seedProduct.Stock,
		}); err != nil {
			return fmt.Errorf("failed to stock product %q: %w", seedProduct.Name, err)
		}
	}

	logger.Info("store seeded",
		"slug", store.Slug,
		"store_id", store.ID,
		"products", len(seedStore.Products),
		"owner", owner.Email,
	)
	return nil
}

// ensureOwner returns the seed owner, registering the account on first run.
func ensureOwner(ctx context.Context, logger *slog.Logger, users *db.UserStore, seedOwner catalog.SeedOwner, cfg seedConfig, storeSlug string) (*models.User, error) {
	email := firstNonEmpty(cfg.OwnerEmail, seedOwner.Email, "owner+"+storeSlug+"@example.com")
	password := firstNonEmpty(seedOwner.Password, cfg.OwnerPassword)
	fullName := firstNonEmpty(seedOwner.FullName, "Demo Owner")

	if user, err := users.GetByEmail(ctx, strings.ToLower(email)); err == nil {
		return user, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	auth, err := services.NewAuthService(users, logger)
	if err != nil {
		return nil, err
	}
	user, err := auth.Register(ctx, services.RegisterInput{Email: email, Password: password, FullName: fullName})
	if err != nil {
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}
	logger.Info("owner created", "email", user.Email)
	return user, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
