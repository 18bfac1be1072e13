package handlers

import (
	"net/http"
	"strings"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User     *models.User `json:"user"`
	Redirect string       `json:"redirect,omitempty"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.startSession(w, r, user) {
		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, authResponse{User: user})
}

// LoginPage is where unauthenticated dashboard requests are sent.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{
		"error":    "sign in required",
		"redirect": safeRedirect(r.URL.Query().Get("redirect")),
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.startSession(w, r, user) {
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, authResponse{
		User:     user,
		Redirect: safeRedirect(r.URL.Query().Get("redirect")),
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.DestroySession(r.Context(), w, r); err != nil {
		h.loggerFromContext(r.Context()).Warn("failed to delete session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFromRequest(r.Context(), r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	user, err := h.auth.User(r.Context(), sess.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, authResponse{User: user})
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	_, err := h.sessionManager.CreateSession(r.Context(), w, &session.Data{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	})
	if err != nil {
		h.loggerFromContext(r.Context()).Error("failed to create session", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return false
	}
	return true
}

// safeRedirect only lets local paths through.
func safeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return ""
	}
	return target
}
