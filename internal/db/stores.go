package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

const storeColumns = `id, owner_id, name, slug, description, is_public, created_at`

type StoreStore struct {
	pool *pgxpool.Pool
}

func NewStoreStore(pool *pgxpool.Pool) *StoreStore {
	return &StoreStore{pool: pool}
}

// CreateWithOwner inserts the store and its owner membership together.
func (s *StoreStore) CreateWithOwner(ctx context.Context, store *models.Store) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		const insertStore = `
			INSERT INTO stores (owner_id, name, slug, description, is_public)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, insertStore, store.OwnerID, store.Name, store.Slug, store.Description, store.IsPublic).
			Scan(&store.ID, &store.CreatedAt)
		if err != nil {
			return mapError(err)
		}

		const insertMember = `INSERT INTO store_members (store_id, user_id, role) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insertMember, store.ID, store.OwnerID, models.RoleStoreOwner); err != nil {
			return fmt.Errorf("failed to add store owner: %w", mapError(err))
		}
		return nil
	})
}

func (s *StoreStore) GetBySlug(ctx context.Context, slug string) (*models.Store, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE slug = $1`, slug)
	return scanStore(row)
}

func (s *StoreStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	return scanStore(row)
}

func (s *StoreStore) ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Store, error) {
	const query = `
		SELECT s.id, s.owner_id, s.name, s.slug, s.description, s.is_public, s.created_at
		FROM stores s
		JOIN store_members m ON m.store_id = s.id
		WHERE m.user_id = $1
		ORDER BY s.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := []*models.Store{}
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

func (s *StoreStore) IsMember(ctx context.Context, storeID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM store_members WHERE store_id = $1 AND user_id = $2)`,
		storeID, userID,
	).Scan(&exists)
	return exists, err
}

// DeleteBySlug removes a store and everything that cascades from it.
func (s *StoreStore) DeleteBySlug(ctx context.Context, slug string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		statements := []string{
			`DELETE FROM payments WHERE order_id IN (SELECT o.id FROM orders o JOIN stores s ON s.id = o.store_id WHERE s.slug = $1)`,
			`DELETE FROM orders WHERE store_id = (SELECT id FROM stores WHERE slug = $1)`,
			`DELETE FROM stores WHERE slug = $1`,
		}
		for _, statement := range statements {
			if _, err := tx.Exec(ctx, statement, slug); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanStore(row pgx.Row) (*models.Store, error) {
	var store models.Store
	err := row.Scan(&store.ID, &store.OwnerID, &store.Name, &store.Slug, &store.Description, &store.IsPublic, &store.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &store, nil
}
