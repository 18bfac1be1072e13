package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/crypto"
)

const (
	cookieName     = "storefront_cart"
	cookieTTL      = 30 * 24 * time.Hour
	maxCookieValue = 3800
	cacheTTL       = 30 * 24 * time.Hour
)

var ErrCartTooLarge = errors.New("cart is too large to store in a cookie")

// Storage persists the encoded cart under a key. Load returns nil data and
// no error when nothing is stored.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

type CacheStorage struct {
	provider cache.Provider
}

func NewCacheStorage(provider cache.Provider) *CacheStorage {
	return &CacheStorage{provider: provider}
}

func (s *CacheStorage) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.provider.Get(ctx, cache.CartKey(key))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *CacheStorage) Save(ctx context.Context, key string, data []byte) error {
	return s.provider.Set(ctx, cache.CartKey(key), string(data), cacheTTL)
}

// CookieStorage keeps the cart in an encrypted cookie bound to a single
// request/response pair.
type CookieStorage struct {
	sealer crypto.Sealer
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

func NewCookieStorage(sealer crypto.Sealer, w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{sealer: sealer, w: w, r: r, secure: secure}
}

// Load treats a cookie that fails to decrypt as an empty cart.
func (s *CookieStorage) Load(_ context.Context, key string) ([]byte, error) {
	cookie, err := s.r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	data, err := s.sealer.Open(cookie.Value, cache.CartKey(key))
	if err != nil {
		return nil, nil
	}
	return data, nil
}

func (s *CookieStorage) Save(_ context.Context, key string, data []byte) error {
	sealed, err := s.sealer.Seal(data, cache.CartKey(key))
	if err != nil {
		return err
	}
	if len(sealed) > maxCookieValue {
		return ErrCartTooLarge
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     cookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
