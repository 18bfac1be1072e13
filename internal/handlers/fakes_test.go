package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/catalog"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/session"
)

const testWebhookSecret = "whsec_test_secret"

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeAuth struct {
	users map[string]*models.User
}

func (a *fakeAuth) Register(_ context.Context, input services.RegisterInput) (*models.User, error) {
	if _, ok := a.users[input.Email]; ok {
		return nil, services.ErrEmailTaken
	}
	user := &models.User{ID: uuid.New(), Email: input.Email, FullName: input.FullName}
	a.users[input.Email] = user
	return user, nil
}

func (a *fakeAuth) Login(_ context.Context, email, password string) (*models.User, error) {
	user, ok := a.users[email]
	if !ok || password != "correct horse" {
		return nil, services.ErrInvalidCredentials
	}
	return user, nil
}

func (a *fakeAuth) User(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range a.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, services.ErrInvalidCredentials
}

func newTestUser(email string) *models.User {
	return &models.User{ID: uuid.New(), Email: email, FullName: "Test User"}
}

type fakeStorefront struct {
	stores   map[string]*models.Store
	products map[string]*models.Product
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		stores:   map[string]*models.Store{},
		products: map[string]*models.Product{},
	}
}

func (f *fakeStorefront) addStore(slug string) *models.Store {
	store := &models.Store{ID: uuid.New(), Name: slug, Slug: slug, IsPublic: true}
	f.stores[slug] = store
	return store
}

func (f *fakeStorefront) addProduct(store *models.Store, slug, price string) *models.Product {
	product := &models.Product{
		ID:       uuid.New(),
		StoreID:  store.ID,
		Name:     slug,
		Slug:     slug,
		Price:    decimal.RequireFromString(price),
		Currency: "USD",
		Status:   models.ProductActive,
	}
	f.products[store.Slug+"/"+slug] = product
	return product
}

func (f *fakeStorefront) Store(_ context.Context, slug string) (*models.Store, error) {
	store, ok := f.stores[slug]
	if !ok {
		return nil, services.ErrStoreNotFound
	}
	return store, nil
}

func (f *fakeStorefront) Products(ctx context.Context, storeSlug string) (*models.Store, []*models.Product, error) {
	store, err := f.Store(ctx, storeSlug)
	if err != nil {
		return nil, nil, err
	}
	var products []*models.Product
	for _, p := range f.products {
		if p.StoreID == store.ID {
			products = append(products, p)
		}
	}
	return store, products, nil
}

func (f *fakeStorefront) Product(ctx context.Context, storeSlug, productSlug string) (*models.Store, *models.Product, error) {
	store, err := f.Store(ctx, storeSlug)
	if err != nil {
		return nil, nil, err
	}
	product, ok := f.products[storeSlug+"/"+productSlug]
	if !ok {
		return nil, nil, services.ErrProductNotFound
	}
	return store, product, nil
}

func (f *fakeStorefront) CustomerOrders(ctx context.Context, storeSlug string, _ uuid.UUID) ([]*models.Order, error) {
	if _, err := f.Store(ctx, storeSlug); err != nil {
		return nil, err
	}
	return []*models.Order{}, nil
}

func (f *fakeStorefront) DiagnoseStore(_ context.Context, slug string) services.StoreDiagnostics {
	store, ok := f.stores[slug]
	return services.StoreDiagnostics{Slug: slug, Found: ok, Public: ok && store.IsPublic, Store: store}
}

type fakeCheckout struct {
	mu         sync.Mutex
	placed     []services.PlaceOrderInput
	initiated  []services.InitiatePaymentInput
	returned   []services.CompleteReturnInput
	placeErr   error
	replayed   bool
	initiateFn func(services.InitiatePaymentInput) (*services.InitiatePaymentResult, error)
}

func (f *fakeCheckout) PlaceOrder(_ context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, input)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return &services.PlaceOrderResult{
		OrderID:        uuid.New(),
		OrderNumber:    "ORD-1",
		Total:          decimal.RequireFromString("25.00"),
		Currency:       "USD",
		OrderToken:     "token",
		IdempotencyKey: input.IdempotencyKey,
		Replayed:       f.replayed,
	}, nil
}

func (f *fakeCheckout) InitiatePayment(_ context.Context, input services.InitiatePaymentInput) (*services.InitiatePaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, input)
	if f.initiateFn != nil {
		return f.initiateFn(input)
	}
	return &services.InitiatePaymentResult{
		OrderID:     input.OrderID,
		SessionID:   "cs_test_1",
		CheckoutURL: "https://checkout.stripe.test/cs_test_1",
	}, nil
}

func (f *fakeCheckout) CompleteReturn(_ context.Context, input services.CompleteReturnInput) (*services.CheckoutStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned = append(f.returned, input)
	state := models.CheckoutSuccess
	if input.Outcome == services.ReturnCanceled {
		state = models.CheckoutCanceled
	}
	return &services.CheckoutStatus{
		OrderID:       input.OrderID,
		State:         state,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	}, nil
}

type fakeWebhooks struct {
	mu     sync.Mutex
	events []*stripeapi.Event
	err    error
}

func (f *fakeWebhooks) HandleStripeEvent(_ context.Context, event *stripeapi.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeWebhooks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeDashboard struct {
	ownerID uuid.UUID
	store   *models.Store
	orders  map[uuid.UUID]*models.Order
	ordered map[uuid.UUID]bool
}

func (f *fakeDashboard) authorize(userID, storeID uuid.UUID) error {
	if f.store == nil || f.store.ID != storeID {
		return services.ErrStoreNotFound
	}
	if userID != f.ownerID {
		return services.ErrStoreAccessDenied
	}
	return nil
}

func (f *fakeDashboard) CreateStore(_ context.Context, ownerID uuid.UUID, input catalog.StoreInput) (*models.Store, error) {
	if input.Slug == "" {
		return nil, catalog.ErrInvalidInput
	}
	return &models.Store{ID: uuid.New(), OwnerID: ownerID, Name: input.Name, Slug: input.Slug}, nil
}

func (f *fakeDashboard) Stores(context.Context, uuid.UUID) ([]*models.Store, error) {
	return nil, nil
}

func (f *fakeDashboard) Store(_ context.Context, userID, storeID uuid.UUID) (*models.Store, error) {
	if err := f.authorize(userID, storeID); err != nil {
		return nil, err
	}
	return f.store, nil
}

func (f *fakeDashboard) CreateProduct(_ context.Context, userID, storeID uuid.UUID, input catalog.ProductInput) (*models.Product, error) {
	if err := f.authorize(userID, storeID); err != nil {
		return nil, err
	}
	return &models.Product{ID: uuid.New(), StoreID: storeID, Name: input.Name}, nil
}

func (f *fakeDashboard) Products(_ context.Context, userID, storeID uuid.UUID) ([]*models.Product, error) {
	return nil, f.authorize(userID, storeID)
}

func (f *fakeDashboard) DeleteProduct(_ context.Context, userID, storeID, productID uuid.UUID) error {
	if err := f.authorize(userID, storeID); err != nil {
		return err
	}
	if f.ordered[productID] {
		return services.ErrProductHasOrders
	}
	return nil
}

func (f *fakeDashboard) Inventory(_ context.Context, userID, storeID uuid.UUID) ([]*models.InventoryItem, error) {
	return nil, f.authorize(userID, storeID)
}

func (f *fakeDashboard) SetInventory(_ context.Context, userID, storeID uuid.UUID, input services.InventoryInput) (*models.InventoryItem, error) {
	if err := f.authorize(userID, storeID); err != nil {
		return nil, err
	}
	return &models.InventoryItem{ProductID: input.ProductID, SKU: input.SKU, Quantity: input.Quantity}, nil
}

func (f *fakeDashboard) Orders(_ context.Context, userID, storeID uuid.UUID) ([]*models.Order, error) {
	return nil, f.authorize(userID, storeID)
}

func (f *fakeDashboard) Order(_ context.Context, userID, storeID, orderID uuid.UUID) (*services.OrderDetail, error) {
	if err := f.authorize(userID, storeID); err != nil {
		return nil, err
	}
	order, ok := f.orders[orderID]
	if !ok || order.StoreID != storeID {
		return nil, services.ErrOrderNotFound
	}
	return &services.OrderDetail{Order: order}, nil
}

func (f *fakeDashboard) Summary(context.Context, uuid.UUID) (*services.DashboardSummary, error) {
	return &services.DashboardSummary{}, nil
}

type testEnv struct {
	h          *Handlers
	cfg        *config.Config
	sessions   *session.Manager
	auth       *fakeAuth
	storefront *fakeStorefront
	checkout   *fakeCheckout
	webhooks   *fakeWebhooks
	dashboard  *fakeDashboard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider, err := cache.NewMemoryProvider(128)
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}

	env := &testEnv{
		cfg: &config.Config{
			AppEnv:                "test",
			BaseURL:               "https://shop.example.com",
			StripeWebhookSecret:   testWebhookSecret,
			CartStorage:           "cache",
			CheckoutRatePerMinute: 100,
		},
		sessions:   session.NewManager(session.NewCacheStore(provider), false),
		auth:       &fakeAuth{users: map[string]*models.User{}},
		storefront: newFakeStorefront(),
		checkout:   &fakeCheckout{},
		webhooks:   &fakeWebhooks{},
		dashboard:  &fakeDashboard{},
	}

	h, err := New(Dependencies{
		Config:         env.cfg,
		DB:             fakePinger{},
		CacheProvider:  provider,
		SessionManager: env.sessions,
		Auth:           env.auth,
		Storefront:     env.storefront,
		Checkout:       env.checkout,
		Webhooks:       env.webhooks,
		Dashboard:      env.dashboard,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.Close)
	env.h = h
	return env
}

// signIn creates a session and returns its cookie.
func (e *testEnv) signIn(t *testing.T, userID uuid.UUID) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if _, err := e.sessions.CreateSession(context.Background(), rec, &session.Data{UserID: userID, Email: "shopper@example.com"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}
	return cookies[0]
}

func withVars(req *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(req, vars)
}

// carryCookies copies the cookies set on rec onto req.
func carryCookies(rec *httptest.ResponseRecorder, req *http.Request) {
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
}
