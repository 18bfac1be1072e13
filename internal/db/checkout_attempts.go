package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

const attemptColumns = `id, idempotency_key, store_id, order_id, state, session_url, last_error, created_at, updated_at`

type CheckoutAttemptStore struct {
	pool *pgxpool.Pool
}

func NewCheckoutAttemptStore(pool *pgxpool.Pool) *CheckoutAttemptStore {
	return &CheckoutAttemptStore{pool: pool}
}

// Begin returns the attempt for key, creating an idle one when none exists.
// The boolean reports whether the attempt was created by this call.
func (s *CheckoutAttemptStore) Begin(ctx context.Context, key string, storeID uuid.UUID) (*models.CheckoutAttempt, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO checkout_attempts (idempotency_key, store_id, state)
		VALUES ($1, $2, 'idle')
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+attemptColumns, key, storeID)
	attempt, err := scanAttempt(row)
	if err == nil {
		return attempt, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create checkout attempt: %w", err)
	}

	attempt, err = s.GetByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return attempt, false, nil
}

func (s *CheckoutAttemptStore) GetByKey(ctx context.Context, key string) (*models.CheckoutAttempt, error) {
	return scanAttempt(s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM checkout_attempts WHERE idempotency_key = $1`, key))
}

func (s *CheckoutAttemptStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.CheckoutAttempt, error) {
	return scanAttempt(s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM checkout_attempts WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`,
		orderID,
	))
}

// SetState moves an attempt to a terminal or error state. Attempts that
// already reached success are left untouched.
func (s *CheckoutAttemptStore) SetState(ctx context.Context, id uuid.UUID, state models.CheckoutState, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE checkout_attempts
		SET state = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND state <> 'success'
	`, id, string(state), lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attempt already completed", ErrInvalidStatusTransition)
	}
	return nil
}

func scanAttempt(row pgx.Row) (*models.CheckoutAttempt, error) {
	var (
		attempt models.CheckoutAttempt
		state   string
	)
	err := row.Scan(
		&attempt.ID,
		&attempt.IdempotencyKey,
		&attempt.StoreID,
		&attempt.OrderID,
		&state,
		&attempt.SessionURL,
		&attempt.LastError,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	attempt.State = models.CheckoutState(state)
	return &attempt, nil
}
