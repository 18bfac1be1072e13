package session

import (
	"context"
	"net/http"
	"net/url"
)

type contextKey struct{}

// Middleware attaches the session, when there is one, to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data, err := m.GetSession(r.Context(), r); err == nil {
			r = r.WithContext(WithSession(r.Context(), data))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects anonymous requests to loginPath, carrying the
// original path in the redirect query parameter.
func (m *Manager) RequireAuth(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := m.GetSession(r.Context(), r)
			if err != nil {
				target := loginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), data)))
		})
	}
}

func WithSession(ctx context.Context, data *Data) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

func FromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	data, _ := ctx.Value(contextKey{}).(*Data)
	return data
}
