package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

const productColumns = `id, store_id, name, slug, description, price, currency, status, image_url, created_at`

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) Create(ctx context.Context, product *models.Product) error {
	const query = `
		INSERT INTO products (store_id, name, slug, description, price, currency, status, image_url)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		product.StoreID,
		product.Name,
		product.Slug,
		product.Description,
		numeric(product.Price),
		product.Currency,
		string(product.Status),
		product.ImageURL,
	).Scan(&product.ID, &product.CreatedAt)
	return mapError(err)
}

func (s *ProductStore) Delete(ctx context.Context, storeID, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND store_id = $2`, productID, storeID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) GetBySlug(ctx context.Context, storeID uuid.UUID, slug string) (*models.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE store_id = $1 AND slug = $2`, storeID, slug)
	return scanProduct(row)
}

// ListByStore returns the store's products, newest first.
func (s *ProductStore) ListByStore(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = $1`
	if activeOnly {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// GetByIDs looks up products of one store by id. Ids that do not belong to
// the store are absent from the result.
func (s *ProductStore) GetByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	result := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE store_id = $1 AND id = ANY($2)`,
		storeID, ids,
	)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, product := range products {
		result[product.ID] = product
	}
	return result, nil
}

func (s *ProductStore) CountByStore(ctx context.Context, storeID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE store_id = $1`, storeID).Scan(&count)
	return count, err
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		product models.Product
		status  string
	)
	err := row.Scan(
		&product.ID,
		&product.StoreID,
		&product.Name,
		&product.Slug,
		&product.Description,
		&product.Price,
		&product.Currency,
		&status,
		&product.ImageURL,
		&product.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	product.Status = models.ProductStatus(status)
	return &product, nil
}
