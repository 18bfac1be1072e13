package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

const customerColumns = `id, store_id, user_id, email, full_name, phone, created_at`

type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

// FindByUser returns the oldest customer row for the shopper in the store.
func (s *CustomerStore) FindByUser(ctx context.Context, storeID, userID uuid.UUID) (*models.Customer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE store_id = $1 AND user_id = $2 ORDER BY created_at LIMIT 1`,
		storeID, userID,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) FindByEmail(ctx context.Context, storeID uuid.UUID, email string) (*models.Customer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE store_id = $1 AND email = $2 ORDER BY created_at LIMIT 1`,
		storeID, email,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (s *CustomerStore) Create(ctx context.Context, customer *models.Customer) error {
	const query = `
		INSERT INTO customers (store_id, user_id, email, full_name, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		customer.StoreID,
		customer.UserID,
		customer.Email,
		customer.FullName,
		customer.Phone,
	).Scan(&customer.ID, &customer.CreatedAt)
	return mapError(err)
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var customer models.Customer
	err := row.Scan(
		&customer.ID,
		&customer.StoreID,
		&customer.UserID,
		&customer.Email,
		&customer.FullName,
		&customer.Phone,
		&customer.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &customer, nil
}
