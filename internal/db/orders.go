package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontapp/storefront/internal/models"
)

const orderColumns = `id, store_id, customer_id, order_number, status, payment_status, total, currency,
	stripe_checkout_session_id, created_at, paid_at`

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// CreateForAttempt writes the order, its items and the pending payment, and
// moves the idle checkout attempt to order_created, all in one transaction.
// It fails with ErrInvalidStatusTransition when the attempt is no longer idle.
func (s *OrderStore) CreateForAttempt(ctx context.Context, attemptID uuid.UUID, order *models.Order, payment *models.Payment) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		const insertOrder = `
			INSERT INTO orders (store_id, customer_id, order_number, status, payment_status, total, currency)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, insertOrder,
			order.StoreID,
			order.CustomerID,
			order.OrderNumber,
			string(order.Status),
			string(order.PaymentStatus),
			numeric(order.Total),
			order.Currency,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", mapError(err))
		}

		const insertItem = `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
			RETURNING id
		`
		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, insertItem,
				order.ID, item.ProductID, item.ProductName, item.Quantity, numeric(item.UnitPrice), numeric(item.Total),
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", mapError(err))
			}
		}

		payment.OrderID = order.ID
		const insertPayment = `
			INSERT INTO payments (order_id, provider, status, amount, currency)
			VALUES ($1, $2, $3, $4::numeric, $5)
			RETURNING id, created_at
		`
		err = tx.QueryRow(ctx, insertPayment,
			payment.OrderID, payment.Provider, string(payment.Status), numeric(payment.Amount), payment.Currency,
		).Scan(&payment.ID, &payment.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", mapError(err))
		}

		const advanceAttempt = `
			UPDATE checkout_attempts
			SET order_id = $2, state = 'order_created', last_error = '', updated_at = NOW()
			WHERE id = $1 AND state IN ('idle', 'error') AND order_id IS NULL
		`
		tag, err := tx.Exec(ctx, advanceAttempt, attemptID, order.ID)
		if err != nil {
			return fmt.Errorf("failed to update checkout attempt: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: expected idle checkout attempt", ErrInvalidStatusTransition)
		}
		return nil
	})
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *OrderStore) ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]*models.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id = $1 ORDER BY created_at DESC LIMIT $2`, storeID, limit)
}

func (s *OrderStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`, customerID, limit)
}

// ListByMember returns recent orders across every store the user belongs to.
func (s *OrderStore) ListByMember(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error) {
	const query = `
		SELECT o.id, o.store_id, o.customer_id, o.order_number, o.status, o.payment_status, o.total, o.currency,
			o.stripe_checkout_session_id, o.created_at, o.paid_at
		FROM orders o
		JOIN store_members m ON m.store_id = o.store_id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2
	`
	return s.list(ctx, query, userID, limit)
}

// RecordCheckoutSession stores the hosted session on the order and payment
// and moves the attempt to payment_initiated.
func (s *OrderStore) RecordCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID, sessionURL string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET stripe_checkout_session_id = $2 WHERE id = $1 AND status = 'pending'`,
			orderID, sessionID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: expected pending order", ErrInvalidStatusTransition)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE payments SET provider_session_id = $2 WHERE order_id = $1`,
			orderID, sessionID,
		); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE checkout_attempts
			SET state = 'payment_initiated', session_url = $2, last_error = '', updated_at = NOW()
			WHERE order_id = $1 AND state IN ('order_created', 'payment_initiated', 'error', 'canceled')
		`, orderID, sessionURL)
		return err
	})
}

// MarkPaid records a confirmed payment and reports whether this call moved
// the order out of pending. Replays for an already paid order are accepted
// and report false.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID, payload []byte) (bool, error) {
	var transitioned bool
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status); err != nil {
			return mapError(err)
		}
		switch models.OrderStatus(status) {
		case models.StatusPaid:
			return nil
		case models.StatusPending:
		default:
			return fmt.Errorf("%w: expected pending/paid, got %s", ErrInvalidStatusTransition, status)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = 'paid', payment_status = 'succeeded', paid_at = NOW()
			WHERE id = $1
		`, orderID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE payments SET status = 'succeeded', payload = $2 WHERE order_id = $1`,
			orderID, payload,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE checkout_attempts SET state = 'success', updated_at = NOW() WHERE order_id = $1`,
			orderID,
		); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

func (s *OrderStore) GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	const query = `
		SELECT id, order_id, provider, COALESCE(provider_session_id, ''), status, amount, currency, payload, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		payment models.Payment
		status  string
	)
	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Provider,
		&payment.ProviderSessionID,
		&status,
		&payment.Amount,
		&payment.Currency,
		&payment.Payload,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	payment.Status = models.PaymentStatus(status)
	return &payment, nil
}

func (s *OrderStore) list(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *OrderStore) listItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order         models.Order
		status        string
		paymentStatus string
		sessionID     pgtype.Text
		paidAt        pgtype.Timestamptz
	)
	err := row.Scan(
		&order.ID,
		&order.StoreID,
		&order.CustomerID,
		&order.OrderNumber,
		&status,
		&paymentStatus,
		&order.Total,
		&order.Currency,
		&sessionID,
		&order.CreatedAt,
		&paidAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	order.Status = models.OrderStatus(status)
	order.PaymentStatus = models.PaymentStatus(paymentStatus)
	if sessionID.Valid {
		order.StripeCheckoutSessionID = sessionID.String
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	return &order, nil
}
