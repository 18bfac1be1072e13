package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/models"
)

// The services depend on these narrow views of the db stores so they can be
// exercised against in-memory fakes.

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type storeRepository interface {
	CreateWithOwner(ctx context.Context, store *models.Store) error
	GetBySlug(ctx context.Context, slug string) (*models.Store, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Store, error)
	IsMember(ctx context.Context, storeID, userID uuid.UUID) (bool, error)
}

type productRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, storeID, productID uuid.UUID) error
	GetBySlug(ctx context.Context, storeID uuid.UUID, slug string) (*models.Product, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]*models.Product, error)
	GetByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	CountByStore(ctx context.Context, storeID uuid.UUID) (int, error)
}

type inventoryRepository interface {
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]*models.InventoryItem, error)
	Upsert(ctx context.Context, storeID uuid.UUID, item *models.InventoryItem) error
}

type customerRepository interface {
	FindByUser(ctx context.Context, storeID, userID uuid.UUID) (*models.Customer, error)
	FindByEmail(ctx context.Context, storeID uuid.UUID, email string) (*models.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
}

type cartRepository interface {
	FindActive(ctx context.Context, storeID, customerID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
}

type orderRepository interface {
	CreateForAttempt(ctx context.Context, attemptID uuid.UUID, order *models.Order, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Order, error)
	ListByMember(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error)
	RecordCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID, sessionURL string) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, payload []byte) (bool, error)
	GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type attemptRepository interface {
	Begin(ctx context.Context, key string, storeID uuid.UUID) (*models.CheckoutAttempt, bool, error)
	GetByKey(ctx context.Context, key string) (*models.CheckoutAttempt, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.CheckoutAttempt, error)
	SetState(ctx context.Context, id uuid.UUID, state models.CheckoutState, lastError string) error
}
