package db

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(user.Email)), user.FullName, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	return mapError(err)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, full_name, password_hash, created_at FROM users WHERE email = $1`
	return s.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const query = `SELECT id, email, full_name, password_hash, created_at FROM users WHERE id = $1`
	return s.getOne(ctx, query, id)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}
