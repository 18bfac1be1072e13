package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
)

const (
	ownerOrderLimit   = 100
	recentOrdersLimit = 10
)

type InventoryInput struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
}

type OrderDetail struct {
	Order   *models.Order   `json:"order"`
	Payment *models.Payment `json:"payment,omitempty"`
}

type DashboardSummary struct {
	StoreCount   int             `json:"store_count"`
	Stores       []*models.Store `json:"stores"`
	RecentOrders []*models.Order `json:"recent_orders"`
}

// DashboardService implements the owner-facing store management. Every
// store-scoped call checks the caller's membership first.
type DashboardService struct {
	stores    storeRepository
	products  productRepository
	inventory inventoryRepository
	orders    orderRepository
	validator *catalog.Validator
	logger    *slog.Logger
}

func NewDashboardService(stores storeRepository, products productRepository, inventory inventoryRepository, orders orderRepository, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		stores:    stores,
		products:  products,
		inventory: inventory,
		orders:    orders,
		validator: catalog.NewValidator(),
		logger:    logger,
	}
}

func (s *DashboardService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *DashboardService) CreateStore(ctx context.Context, ownerID uuid.UUID, input catalog.StoreInput) (*models.Store, error) {
	store, err := s.validator.Store(ownerID, input)
	if err != nil {
		return nil, err
	}

	if err := s.stores.CreateWithOwner(ctx, store); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	observability.MeterFromContext(ctx).Count("dashboard.store.created", 1)
	s.loggerFromContext(ctx).Info("store created", "store_id", store.ID.String(), "slug", store.Slug)
	return store, nil
}

func (s *DashboardService) Stores(ctx context.Context, userID uuid.UUID) ([]*models.Store, error) {
	stores, err := s.stores.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

func (s *DashboardService) Store(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error) {
	return s.authorize(ctx, userID, storeID)
}

func (s *DashboardService) CreateProduct(ctx context.Context, userID, storeID uuid.UUID, input catalog.ProductInput) (*models.Product, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}

	product, err := s.validator.Product(storeID, input)
	if err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	observability.MeterFromContext(ctx).Count("dashboard.product.created", 1, sentry.WithAttributes(
		attribute.String("status", string(product.Status)),
	))
	return product, nil
}

func (s *DashboardService) Products(ctx context.Context, userID, storeID uuid.UUID) ([]*models.Product, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}

	products, err := s.products.ListByStore(ctx, storeID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *DashboardService) DeleteProduct(ctx context.Context, userID, storeID, productID uuid.UUID) error {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, storeID, productID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrProductNotFound
		}
		if errors.Is(err, db.ErrReferenced) {
			return ErrProductHasOrders
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *DashboardService) Inventory(ctx context.Context, userID, storeID uuid.UUID) ([]*models.InventoryItem, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}

	items, err := s.inventory.ListByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

func (s *DashboardService) SetInventory(ctx context.Context, userID, storeID uuid.UUID, input InventoryInput) (*models.InventoryItem, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id is required", catalog.ErrInvalidInput)
	}
	if input.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be zero or positive", catalog.ErrInvalidInput)
	}

	item := &models.InventoryItem{
		ProductID: input.ProductID,
		SKU:       strings.TrimSpace(input.SKU),
		Quantity:  input.Quantity,
	}
	if err := s.inventory.Upsert(ctx, storeID, item); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	return item, nil
}

func (s *DashboardService) Orders(ctx context.Context, userID, storeID uuid.UUID) ([]*models.Order, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListByStore(ctx, storeID, ownerOrderLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Order returns one of the store's orders with its latest payment record.
func (s *DashboardService) Order(ctx context.Context, userID, storeID, orderID uuid.UUID) (*OrderDetail, error) {
	if _, err := s.authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.StoreID != storeID {
		return nil, ErrOrderNotFound
	}

	payment, err := s.orders.GetPayment(ctx, orderID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &OrderDetail{Order: order, Payment: payment}, nil
}

func (s *DashboardService) Summary(ctx context.Context, userID uuid.UUID) (*DashboardSummary, error) {
	stores, err := s.Stores(ctx, userID)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ListByMember(ctx, userID, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}

	return &DashboardSummary{
		StoreCount:   len(stores),
		Stores:       stores,
		RecentOrders: orders,
	}, nil
}

func (s *DashboardService) authorize(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error) {
	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	member, err := s.stores.IsMember(ctx, storeID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check store membership: %w", err)
	}
	if !member {
		s.loggerFromContext(ctx).Warn("store access denied", "store_id", storeID.String(), "user_id", userID.String())
		return nil, ErrStoreAccessDenied
	}
	return store, nil
}
