// Package cart holds a visitor's per-store carts. State is persisted through
// a Storage port and, for signed-in shoppers, mirrored to the database by a
// background SyncQueue.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrItemNotFound = errors.New("cart item not found")

type Item struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
}

// StoreCart is the cart of one store. RemoteCartID survives ClearStore so
// the server-side cart keeps being reused.
type StoreCart struct {
	StoreID      uuid.UUID  `json:"store_id"`
	RemoteCartID *uuid.UUID `json:"remote_cart_id,omitempty"`
	Items        []Item     `json:"items"`
	Open         bool       `json:"open,omitempty"`
}

// Shopper identifies the signed-in user whose cart is mirrored remotely.
type Shopper struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

// Snapshot is the state of one store cart handed to the sync queue.
type Snapshot struct {
	Shopper   Shopper
	StoreSlug string
	StoreID   uuid.UUID
	Items     []Item
}

// Remote reads the server-side cart of a signed-in shopper.
type Remote interface {
	// ActiveCart returns the shopper's active cart and its items. found is
	// false when the shopper has no customer record or no active cart.
	ActiveCart(ctx context.Context, storeID uuid.UUID, shopper Shopper) (cartID uuid.UUID, items []Item, found bool, err error)
}

type Syncer interface {
	Schedule(snapshot Snapshot)
}

type Option func(*Cart)

// WithShopper enables remote hydration and sync for a signed-in shopper.
func WithShopper(shopper Shopper, remote Remote, syncer Syncer) Option {
	return func(c *Cart) {
		c.shopper = &shopper
		c.remote = remote
		c.syncer = syncer
	}
}

type Cart struct {
	mu      sync.Mutex
	storage Storage
	key     string
	stores  map[string]*StoreCart
	shopper *Shopper
	remote  Remote
	syncer  Syncer
}

// Load reads the cart stored under key. Unreadable content is discarded
// and yields an empty cart; storage failures are returned.
func Load(ctx context.Context, storage Storage, key string, opts ...Option) (*Cart, error) {
	raw, err := storage.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	c := &Cart{
		storage: storage,
		key:     key,
		stores:  decode(raw),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func decode(raw []byte) map[string]*StoreCart {
	stores := map[string]*StoreCart{}
	if len(raw) == 0 {
		return stores
	}
	if err := json.Unmarshal(raw, &stores); err != nil {
		return map[string]*StoreCart{}
	}
	for slug, sc := range stores {
		if sc == nil {
			delete(stores, slug)
			continue
		}
		sc.Items = slices.DeleteFunc(sc.Items, func(item Item) bool { return item.Quantity < 1 })
	}
	return stores
}

// AddItem adds quantity of item to the store's cart, merging with an
// existing line for the same product. Quantities below one add one.
func (c *Cart) AddItem(ctx context.Context, storeSlug string, storeID uuid.UUID, item Item, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sc := c.storeLocked(storeSlug, storeID)
	if i := indexOf(sc.Items, item.ProductID); i >= 0 {
		sc.Items[i].Quantity += quantity
	} else {
		item.Quantity = quantity
		sc.Items = append(sc.Items, item)
	}
	sc.Open = true

	return c.commitLocked(ctx, storeSlug)
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line, so no line is ever left below one.
func (c *Cart) UpdateQuantity(ctx context.Context, storeSlug string, productID uuid.UUID, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	if !ok {
		return ErrItemNotFound
	}
	i := indexOf(sc.Items, productID)
	if i < 0 {
		return ErrItemNotFound
	}

	if quantity <= 0 {
		sc.Items = slices.Delete(sc.Items, i, i+1)
	} else {
		sc.Items[i].Quantity = quantity
	}
	return c.commitLocked(ctx, storeSlug)
}

func (c *Cart) RemoveItem(ctx context.Context, storeSlug string, productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	if !ok {
		return nil
	}
	sc.Items = slices.DeleteFunc(sc.Items, func(item Item) bool { return item.ProductID == productID })
	return c.commitLocked(ctx, storeSlug)
}

// ClearStore empties one store's items. The store entry and its remote
// cart reference are kept; other stores are untouched.
func (c *Cart) ClearStore(ctx context.Context, storeSlug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	if !ok {
		return nil
	}
	sc.Items = []Item{}
	return c.commitLocked(ctx, storeSlug)
}

// HydrateStore replaces the store's local items with the shopper's active
// server-side cart. Local lines absent remotely are discarded. It is a
// no-op for anonymous visitors and when the remote cart is missing or empty.
func (c *Cart) HydrateStore(ctx context.Context, storeSlug string, storeID uuid.UUID) (bool, error) {
	if c.shopper == nil || c.remote == nil {
		return false, nil
	}

	cartID, items, found, err := c.remote.ActiveCart(ctx, storeID, *c.shopper)
	if err != nil {
		return false, fmt.Errorf("failed to fetch remote cart: %w", err)
	}
	if !found || len(items) == 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sc := c.storeLocked(storeSlug, storeID)
	sc.RemoteCartID = &cartID
	sc.Items = slices.DeleteFunc(slices.Clone(items), func(item Item) bool { return item.Quantity < 1 })

	if err := c.saveLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cart) SetOpen(ctx context.Context, storeSlug string, open bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	if !ok {
		if !open {
			return nil
		}
		sc = c.storeLocked(storeSlug, uuid.Nil)
	}
	sc.Open = open
	return c.saveLocked(ctx)
}

func (c *Cart) IsOpen(storeSlug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	return ok && sc.Open
}

// Items returns a copy of the store's lines.
func (c *Cart) Items(storeSlug string) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc, ok := c.stores[storeSlug]
	if !ok {
		return []Item{}
	}
	return slices.Clone(sc.Items)
}

// Total is the display total from the prices stored in the cart. Orders
// are always re-priced on the server.
func (c *Cart) Total(storeSlug string) decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items(storeSlug) {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) Count(storeSlug string) int {
	count := 0
	for _, item := range c.Items(storeSlug) {
		count += item.Quantity
	}
	return count
}

func (c *Cart) storeLocked(storeSlug string, storeID uuid.UUID) *StoreCart {
	sc, ok := c.stores[storeSlug]
	if !ok {
		sc = &StoreCart{Items: []Item{}}
		c.stores[storeSlug] = sc
	}
	if storeID != uuid.Nil {
		sc.StoreID = storeID
	}
	return sc
}

func (c *Cart) commitLocked(ctx context.Context, storeSlug string) error {
	if err := c.saveLocked(ctx); err != nil {
		return err
	}
	c.scheduleLocked(storeSlug)
	return nil
}

func (c *Cart) saveLocked(ctx context.Context) error {
	raw, err := json.Marshal(c.stores)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := c.storage.Save(ctx, c.key, raw); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (c *Cart) scheduleLocked(storeSlug string) {
	if c.shopper == nil || c.syncer == nil {
		return
	}
	sc := c.stores[storeSlug]
	if sc == nil || sc.StoreID == uuid.Nil {
		return
	}
	c.syncer.Schedule(Snapshot{
		Shopper:   *c.shopper,
		StoreSlug: storeSlug,
		StoreID:   sc.StoreID,
		Items:     slices.Clone(sc.Items),
	})
}

func indexOf(items []Item, productID uuid.UUID) int {
	return slices.IndexFunc(items, func(item Item) bool { return item.ProductID == productID })
}
