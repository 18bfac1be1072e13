package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/cart"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
)

// CartGateway mirrors shopper carts into the carts and cart_items tables.
// It serves both hydration and the background sync queue.
type CartGateway struct {
	customers customerRepository
	carts     cartRepository
	logger    *slog.Logger
}

func NewCartGateway(customers customerRepository, carts cartRepository, logger *slog.Logger) *CartGateway {
	return &CartGateway{customers: customers, carts: carts, logger: logger}
}

func (g *CartGateway) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, g.logger)
}

func (g *CartGateway) ActiveCart(ctx context.Context, storeID uuid.UUID, shopper cart.Shopper) (uuid.UUID, []cart.Item, bool, error) {
	customer, err := g.customers.FindByUser(ctx, storeID, shopper.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return uuid.Nil, nil, false, nil
		}
		return uuid.Nil, nil, false, fmt.Errorf("failed to look up customer: %w", err)
	}

	active, err := g.carts.FindActive(ctx, storeID, customer.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return uuid.Nil, nil, false, nil
		}
		return uuid.Nil, nil, false, fmt.Errorf("failed to look up active cart: %w", err)
	}

	rows, err := g.carts.ListItems(ctx, active.ID)
	if err != nil {
		return uuid.Nil, nil, false, fmt.Errorf("failed to list cart items: %w", err)
	}

	items := make([]cart.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, cart.Item{
			ProductID: row.ProductID,
			Name:      row.ProductName,
			Slug:      row.ProductSlug,
			Price:     row.UnitPrice,
			ImageURL:  row.ImageURL,
			Quantity:  row.Quantity,
		})
	}
	return active.ID, items, true, nil
}

// Push writes snapshot as the shopper's active cart, creating the customer
// and the cart when they do not exist yet.
func (g *CartGateway) Push(ctx context.Context, snapshot cart.Snapshot) error {
	userID := snapshot.Shopper.UserID
	customer, err := resolveCustomer(ctx, g.customers, snapshot.StoreID, customerContact{
		UserID:   &userID,
		Email:    snapshot.Shopper.Email,
		FullName: snapshot.Shopper.FullName,
	})
	if err != nil {
		return err
	}

	active, err := g.carts.FindActive(ctx, snapshot.StoreID, customer.ID)
	if errors.Is(err, db.ErrNotFound) {
		active = &models.Cart{
			StoreID:    snapshot.StoreID,
			CustomerID: customer.ID,
			Status:     models.CartActive,
		}
		err = g.carts.Create(ctx, active)
		if err == nil {
			g.loggerFromContext(ctx).Debug("created remote cart", "cart_id", active.ID.String())
		}
	}
	if err != nil {
		return fmt.Errorf("failed to resolve active cart: %w", err)
	}

	items := make([]models.CartItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if item.Quantity < 1 {
			continue
		}
		items = append(items, models.CartItem{
			CartID:    active.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	if err := g.carts.ReplaceItems(ctx, active.ID, items); err != nil {
		return fmt.Errorf("failed to replace cart items: %w", err)
	}
	return nil
}
