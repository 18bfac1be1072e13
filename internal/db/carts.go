package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) FindActive(ctx context.Context, storeID, customerID uuid.UUID) (*models.Cart, error) {
	const query = `
		SELECT id, store_id, customer_id, status
		FROM carts
		WHERE store_id = $1 AND customer_id = $2 AND status = 'active'
		ORDER BY created_at
		LIMIT 1
	`
	var (
		cart   models.Cart
		status string
	)
	err := s.pool.QueryRow(ctx, query, storeID, customerID).Scan(&cart.ID, &cart.StoreID, &cart.CustomerID, &status)
	if err != nil {
		return nil, mapError(err)
	}
	cart.Status = models.CartStatus(status)
	return &cart, nil
}

func (s *CartStore) Create(ctx context.Context, cart *models.Cart) error {
	const query = `INSERT INTO carts (store_id, customer_id, status) VALUES ($1, $2, 'active') RETURNING id`
	if err := s.pool.QueryRow(ctx, query, cart.StoreID, cart.CustomerID).Scan(&cart.ID); err != nil {
		return mapError(err)
	}
	cart.Status = models.CartActive
	return nil
}

// ReplaceItems swaps the cart's lines for items in one transaction, so a
// failed sync never leaves the remote cart half written.
func (s *CartStore) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("failed to clear cart items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		const insertItem = `
			INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4::numeric)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price
		`
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(insertItem, cartID, item.ProductID, item.Quantity, numeric(item.UnitPrice))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert cart items: %w", mapError(err))
		}
		return nil
	})
}

func (s *CartStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	const query = `
		SELECT ci.cart_id, ci.product_id, p.name, p.slug, p.image_url, ci.quantity, ci.unit_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY p.name
	`
	rows, err := s.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(&item.CartID, &item.ProductID, &item.ProductName, &item.ProductSlug, &item.ImageURL, &item.Quantity, &item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *CartStore) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE carts SET status = 'converted' WHERE id = $1 AND status = 'active'`, cartID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected active cart", ErrInvalidStatusTransition)
	}
	return nil
}
