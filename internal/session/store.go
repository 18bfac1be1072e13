package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storefrontapp/storefront/internal/cache"
)

const keyPrefix = "session:"

// CacheStore keeps session data as JSON in a cache provider.
type CacheStore struct {
	provider cache.Provider
	owned    bool
}

// NewCacheStore stores sessions in a provider shared with other callers.
// Closing the store leaves the provider open.
func NewCacheStore(provider cache.Provider) *CacheStore {
	return &CacheStore{provider: provider}
}

// NewStore opens a provider dedicated to sessions.
func NewStore(cfg cache.Config) (*CacheStore, error) {
	provider, err := cache.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &CacheStore{provider: provider, owned: true}, nil
}

func (s *CacheStore) Get(ctx context.Context, id string) (*Data, error) {
	raw, err := s.provider.Get(ctx, keyPrefix+id)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("%w: unreadable session", ErrNoSession)
	}
	return &data, nil
}

func (s *CacheStore) Save(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.provider.Set(ctx, keyPrefix+id, string(raw), ttl)
}

func (s *CacheStore) Delete(ctx context.Context, id string) error {
	if err := s.provider.Delete(ctx, keyPrefix+id); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}
	return nil
}

func (s *CacheStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.provider.Close()
}
