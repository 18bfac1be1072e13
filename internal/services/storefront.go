package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
)

const shopperOrderLimit = 50

// StorefrontService serves the public, read-only side of a store.
type StorefrontService struct {
	stores    storeRepository
	products  productRepository
	customers customerRepository
	orders    orderRepository
	logger    *slog.Logger
}

func NewStorefrontService(stores storeRepository, products productRepository, customers customerRepository, orders orderRepository, logger *slog.Logger) *StorefrontService {
	return &StorefrontService{
		stores:    stores,
		products:  products,
		customers: customers,
		orders:    orders,
		logger:    logger,
	}
}

func (s *StorefrontService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Store returns a public store. Private stores are reported as missing.
func (s *StorefrontService) Store(ctx context.Context, slug string) (*models.Store, error) {
	store, err := s.stores.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	if !store.IsPublic {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

func (s *StorefrontService) Products(ctx context.Context, storeSlug string) (*models.Store, []*models.Product, error) {
	store, err := s.Store(ctx, storeSlug)
	if err != nil {
		return nil, nil, err
	}

	products, err := s.products.ListByStore(ctx, store.ID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list products: %w", err)
	}
	return store, products, nil
}

func (s *StorefrontService) Product(ctx context.Context, storeSlug, productSlug string) (*models.Store, *models.Product, error) {
	store, err := s.Store(ctx, storeSlug)
	if err != nil {
		return nil, nil, err
	}

	product, err := s.products.GetBySlug(ctx, store.ID, productSlug)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.IsActive() {
		return nil, nil, ErrProductNotFound
	}
	return store, product, nil
}

// CustomerOrders lists the signed-in shopper's orders in the store.
func (s *StorefrontService) CustomerOrders(ctx context.Context, storeSlug string, userID uuid.UUID) ([]*models.Order, error) {
	store, err := s.Store(ctx, storeSlug)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.FindByUser(ctx, store.ID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return []*models.Order{}, nil
		}
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	orders, err := s.orders.ListByCustomer(ctx, customer.ID, shopperOrderLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

type StoreDiagnostics struct {
	Slug         string        `json:"slug"`
	Found        bool          `json:"found"`
	Public       bool          `json:"public"`
	Store        *models.Store `json:"store,omitempty"`
	ProductCount int           `json:"product_count"`
	Error        string        `json:"error,omitempty"`
}

// DiagnoseStore reports the raw lookup result for a slug, including
// private stores and lookup errors.
func (s *StorefrontService) DiagnoseStore(ctx context.Context, slug string) StoreDiagnostics {
	diagnostics := StoreDiagnostics{Slug: slug}

	store, err := s.stores.GetBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			diagnostics.Error = err.Error()
			s.loggerFromContext(ctx).Warn("debug store lookup failed", "slug", slug, "error", err)
		}
		return diagnostics
	}

	diagnostics.Found = true
	diagnostics.Public = store.IsPublic
	diagnostics.Store = store

	count, err := s.products.CountByStore(ctx, store.ID)
	if err != nil {
		diagnostics.Error = err.Error()
		return diagnostics
	}
	diagnostics.ProductCount = count
	return diagnostics
}
