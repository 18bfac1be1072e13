package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/stripe"
)

// memDB is an in-memory stand-in for the Postgres stores. Each repository
// interface gets a thin view over the same data.
type memDB struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	stores    map[uuid.UUID]*models.Store
	members   map[uuid.UUID][]uuid.UUID
	products  map[uuid.UUID]*models.Product
	inventory map[uuid.UUID]*models.InventoryItem
	customers []*models.Customer
	carts     map[uuid.UUID]*models.Cart
	cartItems map[uuid.UUID][]models.CartItem
	orders    map[uuid.UUID]*models.Order
	payments  map[uuid.UUID]*models.Payment
	attempts  map[string]*models.CheckoutAttempt
	writes    int
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uuid.UUID]*models.User{},
		stores:    map[uuid.UUID]*models.Store{},
		members:   map[uuid.UUID][]uuid.UUID{},
		products:  map[uuid.UUID]*models.Product{},
		inventory: map[uuid.UUID]*models.InventoryItem{},
		carts:     map[uuid.UUID]*models.Cart{},
		cartItems: map[uuid.UUID][]models.CartItem{},
		orders:    map[uuid.UUID]*models.Order{},
		payments:  map[uuid.UUID]*models.Payment{},
		attempts:  map[string]*models.CheckoutAttempt{},
	}
}

func (m *memDB) addStore(slug string, public bool) *models.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	store := &models.Store{ID: uuid.New(), Name: strings.ToUpper(slug), Slug: slug, IsPublic: public, CreatedAt: time.Now()}
	m.stores[store.ID] = store
	return store
}

func (m *memDB) addProduct(storeID uuid.UUID, name, price string) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	product := &models.Product{
		ID:       uuid.New(),
		StoreID:  storeID,
		Name:     name,
		Slug:     strings.ToLower(name),
		Price:    decimal.RequireFromString(price),
		Currency: "USD",
		Status:   models.ProductActive,
	}
	m.products[product.ID] = product
	return product
}

func (m *memDB) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memDB) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memDB) attemptFor(orderID uuid.UUID) *models.CheckoutAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.OrderID != nil && *a.OrderID == orderID {
			copied := *a
			return &copied
		}
	}
	return nil
}

type memUsers struct{ *memDB }

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.users {
		if u.Email == email {
			return db.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.Email = email
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	r.writes++
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

type memStores struct{ *memDB }

func (r memStores) CreateWithOwner(_ context.Context, store *models.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.Slug == store.Slug {
			return db.ErrDuplicate
		}
	}
	store.ID = uuid.New()
	store.CreatedAt = time.Now()
	copied := *store
	r.stores[store.ID] = &copied
	r.members[store.ID] = append(r.members[store.ID], store.OwnerID)
	r.writes++
	return nil
}

func (r memStores) GetBySlug(_ context.Context, slug string) (*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.Slug == slug {
			copied := *s
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memStores) GetByID(_ context.Context, id uuid.UUID) (*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r memStores) ListByMember(_ context.Context, userID uuid.UUID) ([]*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stores := []*models.Store{}
	for storeID, users := range r.members {
		if slices.Contains(users, userID) {
			copied := *r.stores[storeID]
			stores = append(stores, &copied)
		}
	}
	return stores, nil
}

func (r memStores) IsMember(_ context.Context, storeID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.members[storeID], userID), nil
}

type memProducts struct{ *memDB }

func (r memProducts) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.StoreID == product.StoreID && p.Slug == product.Slug {
			return db.ErrDuplicate
		}
	}
	product.ID = uuid.New()
	copied := *product
	r.products[product.ID] = &copied
	r.writes++
	return nil
}

func (r memProducts) Delete(_ context.Context, storeID, productID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok || p.StoreID != storeID {
		return db.ErrNotFound
	}
	for _, o := range r.orders {
		for _, item := range o.Items {
			if item.ProductID == productID {
				return fmt.Errorf("%w: order_items_product_id_fkey", db.ErrReferenced)
			}
		}
	}
	delete(r.products, productID)
	r.writes++
	return nil
}

func (r memProducts) GetBySlug(_ context.Context, storeID uuid.UUID, slug string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.StoreID == storeID && p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memProducts) ListByStore(_ context.Context, storeID uuid.UUID, activeOnly bool) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	products := []*models.Product{}
	for _, p := range r.products {
		if p.StoreID != storeID || (activeOnly && !p.IsActive()) {
			continue
		}
		copied := *p
		products = append(products, &copied)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r memProducts) GetByIDs(_ context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := map[uuid.UUID]*models.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.StoreID == storeID {
			copied := *p
			found[id] = &copied
		}
	}
	return found, nil
}

func (r memProducts) CountByStore(_ context.Context, storeID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.products {
		if p.StoreID == storeID {
			count++
		}
	}
	return count, nil
}

type memInventory struct{ *memDB }

func (r memInventory) ListByStore(_ context.Context, storeID uuid.UUID) ([]*models.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []*models.InventoryItem{}
	for productID, item := range r.inventory {
		if p, ok := r.products[productID]; ok && p.StoreID == storeID {
			copied := *item
			copied.ProductName = p.Name
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (r memInventory) Upsert(_ context.Context, storeID uuid.UUID, item *models.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[item.ProductID]
	if !ok || p.StoreID != storeID {
		return db.ErrNotFound
	}
	if existing, ok := r.inventory[item.ProductID]; ok {
		item.ID = existing.ID
	} else {
		item.ID = uuid.New()
	}
	copied := *item
	r.inventory[item.ProductID] = &copied
	r.writes++
	return nil
}

type memCustomers struct{ *memDB }

func (r memCustomers) FindByUser(_ context.Context, storeID, userID uuid.UUID) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.StoreID == storeID && c.UserID != nil && *c.UserID == userID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memCustomers) FindByEmail(_ context.Context, storeID uuid.UUID, email string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.StoreID == storeID && c.Email == email {
			copied := *c
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memCustomers) GetByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memCustomers) Create(_ context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer.ID = uuid.New()
	customer.CreatedAt = time.Now()
	copied := *customer
	r.customers = append(r.customers, &copied)
	r.writes++
	return nil
}

type memCarts struct{ *memDB }

func (r memCarts) FindActive(_ context.Context, storeID, customerID uuid.UUID) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.StoreID == storeID && c.CustomerID == customerID && c.Status == models.CartActive {
			copied := *c
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memCarts) Create(_ context.Context, cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart.ID = uuid.New()
	copied := *cart
	r.carts[cart.ID] = &copied
	r.writes++
	return nil
}

func (r memCarts) ReplaceItems(_ context.Context, cartID uuid.UUID, items []models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[cartID]; !ok {
		return db.ErrNotFound
	}
	r.cartItems[cartID] = slices.Clone(items)
	r.writes++
	return nil
}

func (r memCarts) ListItems(_ context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []models.CartItem{}
	for _, item := range r.cartItems[cartID] {
		if p, ok := r.products[item.ProductID]; ok {
			item.ProductName = p.Name
			item.ProductSlug = p.Slug
			item.ImageURL = p.ImageURL
		}
		items = append(items, item)
	}
	return items, nil
}

func (r memCarts) MarkConverted(_ context.Context, cartID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok || c.Status != models.CartActive {
		return db.ErrInvalidStatusTransition
	}
	c.Status = models.CartConverted
	r.writes++
	return nil
}

type memOrders struct{ *memDB }

func (r memOrders) CreateForAttempt(_ context.Context, attemptID uuid.UUID, order *models.Order, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var attempt *models.CheckoutAttempt
	for _, a := range r.attempts {
		if a.ID == attemptID {
			attempt = a
		}
	}
	if attempt == nil || attempt.OrderID != nil || (attempt.State != models.CheckoutIdle && attempt.State != models.CheckoutError) {
		return fmt.Errorf("%w: expected idle checkout attempt", db.ErrInvalidStatusTransition)
	}

	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	copied := *order
	copied.Items = slices.Clone(order.Items)
	r.orders[order.ID] = &copied

	payment.ID = uuid.New()
	payment.OrderID = order.ID
	storedPayment := *payment
	r.payments[order.ID] = &storedPayment

	orderID := order.ID
	attempt.OrderID = &orderID
	attempt.State = models.CheckoutOrderCreated
	r.writes++
	return nil
}

func (r memOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *o
	copied.Items = slices.Clone(o.Items)
	return &copied, nil
}

func (r memOrders) list(match func(*models.Order) bool, limit int) []*models.Order {
	orders := []*models.Order{}
	for _, o := range r.orders {
		if match(o) {
			copied := *o
			orders = append(orders, &copied)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

func (r memOrders) ListByStore(_ context.Context, storeID uuid.UUID, limit int) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o *models.Order) bool { return o.StoreID == storeID }, limit), nil
}

func (r memOrders) ListByCustomer(_ context.Context, customerID uuid.UUID, limit int) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o *models.Order) bool { return o.CustomerID == customerID }, limit), nil
}

func (r memOrders) ListByMember(_ context.Context, userID uuid.UUID, limit int) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o *models.Order) bool { return slices.Contains(r.members[o.StoreID], userID) }, limit), nil
}

func (r memOrders) RecordCheckoutSession(_ context.Context, orderID uuid.UUID, sessionID, sessionURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != models.StatusPending {
		return db.ErrInvalidStatusTransition
	}
	o.StripeCheckoutSessionID = sessionID
	r.payments[orderID].ProviderSessionID = sessionID
	for _, a := range r.attempts {
		if a.OrderID != nil && *a.OrderID == orderID && a.State != models.CheckoutSuccess {
			a.State = models.CheckoutPaymentInitiated
			a.SessionURL = sessionURL
		}
	}
	r.writes++
	return nil
}

func (r memOrders) MarkPaid(_ context.Context, orderID uuid.UUID, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return false, db.ErrNotFound
	}
	if o.Status == models.StatusPaid {
		return false, nil
	}
	if o.Status != models.StatusPending {
		return false, db.ErrInvalidStatusTransition
	}
	o.Status = models.StatusPaid
	o.PaymentStatus = models.PaymentSucceeded
	r.payments[orderID].Status = models.PaymentSucceeded
	r.payments[orderID].Payload = slices.Clone(payload)
	for _, a := range r.attempts {
		if a.OrderID != nil && *a.OrderID == orderID {
			a.State = models.CheckoutSuccess
		}
	}
	r.writes++
	return true, nil
}

func (r memOrders) GetPayment(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

type memAttempts struct{ *memDB }

func (r memAttempts) Begin(_ context.Context, key string, storeID uuid.UUID) (*models.CheckoutAttempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[key]; ok {
		copied := *a
		return &copied, false, nil
	}
	a := &models.CheckoutAttempt{ID: uuid.New(), IdempotencyKey: key, StoreID: storeID, State: models.CheckoutIdle}
	r.attempts[key] = a
	r.writes++
	copied := *a
	return &copied, true, nil
}

func (r memAttempts) GetByKey(_ context.Context, key string) (*models.CheckoutAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r memAttempts) GetByOrderID(_ context.Context, orderID uuid.UUID) (*models.CheckoutAttempt, error) {
	if a := r.attemptFor(orderID); a != nil {
		return a, nil
	}
	return nil, db.ErrNotFound
}

func (r memAttempts) SetState(_ context.Context, id uuid.UUID, state models.CheckoutState, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID != id {
			continue
		}
		if a.State == models.CheckoutSuccess {
			return db.ErrInvalidStatusTransition
		}
		a.State = state
		a.LastError = lastError
		r.writes++
		return nil
	}
	return db.ErrNotFound
}

type fakeCheckoutSessions struct {
	mu     sync.Mutex
	calls  []stripe.CheckoutSessionParams
	err    error
	nextID int
}

func (f *fakeCheckoutSessions) CreateCheckoutSession(_ context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	id := fmt.Sprintf("cs_test_%d", f.nextID)
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}
