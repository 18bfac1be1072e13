package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/models"
)

func newTestDashboard() (*memDB, *DashboardService) {
	mem := newMemDB()
	return mem, NewDashboardService(memStores{mem}, memProducts{mem}, memInventory{mem}, memOrders{mem}, nil)
}

func TestDashboardCreateStore(t *testing.T) {
	_, service := newTestDashboard()
	ctx := context.Background()
	owner := uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme Goods"})
	require.NoError(t, err)
	assert.Equal(t, "acme-goods", store.Slug)
	assert.True(t, store.IsPublic)

	_, err = service.CreateStore(ctx, uuid.New(), catalog.StoreInput{Name: "Acme Goods"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Dashboard"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	stores, err := service.Stores(ctx, owner)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, store.ID, stores[0].ID)
}

func TestDashboardProductsRequireMembership(t *testing.T) {
	_, service := newTestDashboard()
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme"})
	require.NoError(t, err)

	_, err = service.CreateProduct(ctx, stranger, store.ID, catalog.ProductInput{Name: "Tee", Price: "10"})
	assert.ErrorIs(t, err, ErrStoreAccessDenied)

	_, err = service.Products(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrStoreNotFound)

	product, err := service.CreateProduct(ctx, owner, store.ID, catalog.ProductInput{Name: "Blue Tee", Price: "12.5", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "blue-tee", product.Slug)
	assert.Equal(t, models.ProductActive, product.Status)

	_, err = service.CreateProduct(ctx, owner, store.ID, catalog.ProductInput{Name: "Blue Tee", Price: "1"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = service.CreateProduct(ctx, owner, store.ID, catalog.ProductInput{Name: "Negative", Price: "-1"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	products, err := service.Products(ctx, owner, store.ID)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	assert.ErrorIs(t, service.DeleteProduct(ctx, stranger, store.ID, product.ID), ErrStoreAccessDenied)
	require.NoError(t, service.DeleteProduct(ctx, owner, store.ID, product.ID))
	assert.ErrorIs(t, service.DeleteProduct(ctx, owner, store.ID, product.ID), ErrProductNotFound)
}

func TestDashboardDeleteOrderedProduct(t *testing.T) {
	mem, service := newTestDashboard()
	ctx := context.Background()
	owner := uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme"})
	require.NoError(t, err)
	product, err := service.CreateProduct(ctx, owner, store.ID, catalog.ProductInput{Name: "Mug", Price: "8"})
	require.NoError(t, err)

	order := &models.Order{
		ID:      uuid.New(),
		StoreID: store.ID,
		Status:  models.StatusPaid,
		Items:   []models.OrderItem{{ProductID: product.ID, ProductName: product.Name, Quantity: 1}},
	}
	mem.mu.Lock()
	mem.orders[order.ID] = order
	mem.mu.Unlock()

	assert.ErrorIs(t, service.DeleteProduct(ctx, owner, store.ID, product.ID), ErrProductHasOrders)

	products, err := service.Products(ctx, owner, store.ID)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestDashboardInventory(t *testing.T) {
	mem, service := newTestDashboard()
	ctx := context.Background()
	owner := uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme"})
	require.NoError(t, err)
	product := mem.addProduct(store.ID, "Mug", "8")
	foreign := mem.addProduct(uuid.New(), "Other", "1")

	item, err := service.SetInventory(ctx, owner, store.ID, InventoryInput{ProductID: product.ID, SKU: " MUG-1 ", Quantity: 12})
	require.NoError(t, err)
	assert.Equal(t, "MUG-1", item.SKU)

	_, err = service.SetInventory(ctx, owner, store.ID, InventoryInput{ProductID: foreign.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = service.SetInventory(ctx, owner, store.ID, InventoryInput{ProductID: product.ID, Quantity: -1})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	items, err := service.Inventory(ctx, owner, store.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 12, items[0].Quantity)
	assert.Equal(t, "Mug", items[0].ProductName)
}

func TestDashboardOrdersAndSummary(t *testing.T) {
	mem, service := newTestDashboard()
	ctx := context.Background()
	owner := uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme"})
	require.NoError(t, err)
	mem.orders[uuid.New()] = &models.Order{StoreID: store.ID, OrderNumber: "ORD-1"}
	mem.orders[uuid.New()] = &models.Order{StoreID: uuid.New(), OrderNumber: "ORD-2"}

	orders, err := service.Orders(ctx, owner, store.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-1", orders[0].OrderNumber)

	_, err = service.Orders(ctx, uuid.New(), store.ID)
	assert.ErrorIs(t, err, ErrStoreAccessDenied)

	summary, err := service.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StoreCount)
	assert.Len(t, summary.RecentOrders, 1)
}

func TestDashboardOrderDetail(t *testing.T) {
	mem, service := newTestDashboard()
	ctx := context.Background()
	owner := uuid.New()

	store, err := service.CreateStore(ctx, owner, catalog.StoreInput{Name: "Acme"})
	require.NoError(t, err)
	orderID, foreignID := uuid.New(), uuid.New()
	mem.orders[orderID] = &models.Order{ID: orderID, StoreID: store.ID, OrderNumber: "ORD-1"}
	mem.payments[orderID] = &models.Payment{OrderID: orderID, Provider: "stripe", Status: models.PaymentPending}
	mem.orders[foreignID] = &models.Order{ID: foreignID, StoreID: uuid.New(), OrderNumber: "ORD-2"}

	detail, err := service.Order(ctx, owner, store.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", detail.Order.OrderNumber)
	require.NotNil(t, detail.Payment)
	assert.Equal(t, models.PaymentPending, detail.Payment.Status)

	_, err = service.Order(ctx, owner, store.ID, foreignID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = service.Order(ctx, uuid.New(), store.ID, orderID)
	assert.ErrorIs(t, err, ErrStoreAccessDenied)
}
