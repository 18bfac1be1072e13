// Package session keeps signed-in users and anonymous visitors identified
// across requests with opaque cookie ids.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	cookieName        = "storefront_session"
	visitorCookieName = "storefront_visitor"
	ttl               = 7 * 24 * time.Hour
	visitorTTL        = 180 * 24 * time.Hour
)

var ErrNoSession = errors.New("no active session")

// Data is what a signed-in session remembers about its user.
type Data struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt int64     `json:"created_at"`
}

// Store persists session data by id. Get returns ErrNoSession for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type Manager struct {
	store  Store
	secure bool
	now    func() time.Time
}

func NewManager(store Store, secure bool) *Manager {
	return &Manager{
		store:  store,
		secure: secure,
		now:    time.Now,
	}
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// CreateSession stores data under a fresh id and sets the session cookie.
func (m *Manager) CreateSession(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	if data == nil || data.UserID == uuid.Nil {
		return "", fmt.Errorf("session data with a user is required")
	}

	sessionID := uuid.NewString()
	stored := *data
	stored.CreatedAt = m.now().Unix()
	if err := m.store.Save(ctx, sessionID, &stored, ttl); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	http.SetCookie(w, m.cookie(cookieName, sessionID, ttl))
	return sessionID, nil
}

func (m *Manager) GetSession(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	data, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}

	if m.now().Unix()-data.CreatedAt > int64(ttl.Seconds()) {
		_ = m.store.Delete(ctx, cookie.Value)
		return nil, fmt.Errorf("%w: session expired", ErrNoSession)
	}

	return data, nil
}

// DestroySession clears the cookie even when the stored session cannot be
// deleted.
func (m *Manager) DestroySession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, m.cookie(cookieName, "", -1))
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.store.Delete(ctx, cookie.Value)
}

// VisitorID returns the anonymous visitor id from the request, issuing a new
// cookie when the visitor has none. Carts are keyed by this id.
func (m *Manager) VisitorID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(visitorCookieName); err == nil {
		if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			return cookie.Value
		}
	}

	visitorID := uuid.NewString()
	http.SetCookie(w, m.cookie(visitorCookieName, visitorID, visitorTTL))
	// Later reads within the same request see the new id.
	r.AddCookie(&http.Cookie{Name: visitorCookieName, Value: visitorID})
	return visitorID
}

func (m *Manager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   age,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
