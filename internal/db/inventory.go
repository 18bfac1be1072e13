package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

type InventoryStore struct {
	pool *pgxpool.Pool
}

func NewInventoryStore(pool *pgxpool.Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

func (s *InventoryStore) ListByStore(ctx context.Context, storeID uuid.UUID) ([]*models.InventoryItem, error) {
	const query = `
		SELECT i.id, i.product_id, p.name, i.sku, i.quantity, i.created_at
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE p.store_id = $1
		ORDER BY p.name
	`
	rows, err := s.pool.Query(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*models.InventoryItem{}
	for rows.Next() {
		var item models.InventoryItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU, &item.Quantity, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Upsert sets the stock level for a product of the given store.
func (s *InventoryStore) Upsert(ctx context.Context, storeID uuid.UUID, item *models.InventoryItem) error {
	const query = `
		INSERT INTO inventory (product_id, sku, quantity)
		SELECT p.id, $3, $4 FROM products p WHERE p.id = $1 AND p.store_id = $2
		ON CONFLICT (product_id) DO UPDATE SET sku = EXCLUDED.sku, quantity = EXCLUDED.quantity
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, item.ProductID, storeID, item.SKU, item.Quantity).
		Scan(&item.ID, &item.CreatedAt)
	return mapError(err)
}
