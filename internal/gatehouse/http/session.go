package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// SessionHandler owns the token lifecycle endpoints: refresh, logout and
// password change.
type SessionHandler struct {
	Tokens *service.TokenService
	Users  *service.UserService
}

// Refresh rotates the session. The refresh cookie is the credential; the
// old pair is revoked before the new one is handed out, so a stolen
// refresh token works at most once.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(service.RefreshCookieName)
	if err != nil || refreshCookie.Value == "" {
		httpx.WriteError(w, r, http.StatusUnauthorized, "missing refresh token")
		return
	}

	var rawAccess string
	if c, err := r.Cookie(service.AccessCookieName); err == nil {
		rawAccess = c.Value
	}

	pair, err := h.Tokens.Refresh(r.Context(), refreshCookie.Value, rawAccess)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			h.Tokens.ClearAuthCookies(w)
			httpx.WriteError(w, r, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		slogx.FromContext(r.Context()).Error("session refresh failed",
			slog.String("error", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.Tokens.SetAuthCookies(w, pair)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// Logout revokes both tokens and clears the cookies. Revocation is by
// allow-list deletion, so the tokens are dead on every replica at once.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{service.AccessCookieName, service.RefreshCookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			if err := h.Tokens.RevokeRaw(r.Context(), c.Value); err != nil {
				slogx.FromContext(r.Context()).Error("token revocation failed",
					slog.String("cookie", name),
					slog.String("error", err.Error()))
			}
		}
	}
	h.Tokens.ClearAuthCookies(w)

	if httpx.WantsJSON(r) {
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the caller's current password before storing
// the new hash. The session stays valid; tokens are tied to the user id,
// not the credential.
func (h *SessionHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in changePasswordRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.CurrentPassword == "" || in.NewPassword == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "current and new password are required")
		return
	}

	err := h.Users.ChangePassword(r.Context(), claims.Subject, in.CurrentPassword, in.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, r, http.StatusForbidden, "current password is incorrect")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			slogx.FromContext(r.Context()).Error("password change failed",
				slog.String("error", err.Error()))
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
