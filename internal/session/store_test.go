package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/cache"
)

type failingProvider struct {
	cache.Provider
	err error
}

func (f failingProvider) Get(context.Context, string) (string, error) {
	return "", f.err
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default provider", provider: "", wantErr: false},
		{name: "memory provider", provider: "memory", wantErr: false},
		{name: "unsupported provider", provider: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := NewStore(cache.Config{Provider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("expected close without error, got %v", err)
			}
		})
	}
}

func TestCacheStore_Lookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider, err := cache.NewMemoryProvider(16)
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	store := NewCacheStore(provider)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for unknown id, got %v", err)
	}

	if err := provider.Set(ctx, keyPrefix+"garbled", "{not json", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Get(ctx, "garbled"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for unreadable data, got %v", err)
	}

	userID := uuid.New()
	if err := store.Save(ctx, "abc", &Data{UserID: userID, Email: "owner@example.com"}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data.UserID != userID || data.Email != "owner@example.com" {
		t.Fatalf("unexpected session data %+v", data)
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after delete, got %v", err)
	}

	// A shared provider stays usable after the store is closed.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := provider.Set(ctx, "cart:v2:x", "{}", 0); err != nil {
		t.Fatalf("provider unusable after store close: %v", err)
	}
}

func TestCacheStore_BackendErrorIsNotMissingSession(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("connection refused")
	store := NewCacheStore(failingProvider{err: backendErr})

	_, err := store.Get(context.Background(), "abc")
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if errors.Is(err, ErrNoSession) {
		t.Fatalf("backend failure must not look like a missing session")
	}
}
