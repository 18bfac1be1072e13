package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/models"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Acme Goods  ":      "acme-goods",
		"Café & Bakery!!":     "caf-bakery",
		"--Already-Slugged--": "already-slugged",
		"100% Cotton Tee":     "100-cotton-tee",
		"***":                 "",
	}
	for input, want := range tests {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidator_Store(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	tests := []struct {
		name     string
		input    StoreInput
		wantSlug string
		wantErr  string
	}{
		{name: "slug from name", input: StoreInput{Name: "Acme Goods"}, wantSlug: "acme-goods"},
		{name: "explicit slug normalised", input: StoreInput{Name: "Acme", Slug: "My Shop"}, wantSlug: "my-shop"},
		{name: "name too short", input: StoreInput{Name: "A"}, wantErr: "name must be at least 2"},
		{name: "reserved slug", input: StoreInput{Name: "Dashboard"}, wantErr: "reserved"},
	}

	v := NewValidator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := v.Store(ownerID, tt.input)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.Slug != tt.wantSlug || store.OwnerID != ownerID || !store.IsPublic {
				t.Fatalf("unexpected store: %+v", store)
			}
		})
	}
}

func TestValidator_Product(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	tests := []struct {
		name    string
		input   ProductInput
		check   func(t *testing.T, p *models.Product)
		wantErr string
	}{
		{
			name:  "defaults",
			input: ProductInput{Name: "Coffee Beans", Price: "12.50"},
			check: func(t *testing.T, p *models.Product) {
				if p.Currency != "USD" || p.Status != models.ProductDraft || p.Slug != "coffee-beans" {
					t.Fatalf("unexpected defaults: %+v", p)
				}
				if p.Price.String() != "12.5" {
					t.Fatalf("unexpected price %s", p.Price)
				}
			},
		},
		{
			name:  "active lowercase currency",
			input: ProductInput{Name: "Mug", Price: "8", Currency: "eur", Status: "active"},
			check: func(t *testing.T, p *models.Product) {
				if p.Currency != "EUR" || !p.IsActive() {
					t.Fatalf("unexpected product: %+v", p)
				}
			},
		},
		{name: "negative price", input: ProductInput{Name: "Mug", Price: "-1"}, wantErr: "zero or positive"},
		{name: "non numeric price", input: ProductInput{Name: "Mug", Price: "ten"}, wantErr: "decimal number"},
		{name: "bad currency", input: ProductInput{Name: "Mug", Price: "1", Currency: "US"}, wantErr: "3-letter"},
		{name: "bad status", input: ProductInput{Name: "Mug", Price: "1", Status: "archived"}, wantErr: "one of"},
		{name: "short name", input: ProductInput{Name: "M", Price: "1"}, wantErr: "at least 2"},
	}

	v := NewValidator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			product, err := v.Product(storeID, tt.input)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if product.StoreID != storeID {
				t.Fatalf("store id not set")
			}
			tt.check(t, product)
		})
	}
}
