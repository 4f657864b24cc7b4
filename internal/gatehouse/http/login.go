package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// LoginHandler serves POST /login for both the HTML form and JSON
// clients. On success it sets the auth cookies either way; browsers are
// then redirected to the dashboard while JSON clients get the token pair
// in the body.
type LoginHandler struct {
	Users  *service.UserService
	Tokens *service.TokenService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code,omitempty"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if isJSONBody(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid form data")
			return
		}
		in.Username = r.PostFormValue("username")
		in.Password = r.PostFormValue("password")
		in.OTPCode = r.PostFormValue("otp_code")
	}

	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		h.fail(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.Users.Authenticate(r.Context(), in.Username, in.Password, in.OTPCode, httpx.ClientIP(r))
	if err != nil {
		h.fail(w, r, http.StatusUnauthorized, "invalid username or password")
		return
	}

	pair, err := h.Tokens.IssueTokens(r.Context(), user.ID)
	if err != nil {
		slogx.FromContext(r.Context()).Error("token issuance failed",
			slog.String("error", err.Error()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.Tokens.SetAuthCookies(w, pair)

	if httpx.WantsJSON(r) {
		httpx.WriteJSON(w, http.StatusOK, pair)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// fail renders the one generic credential failure. The same message and
// status cover an unknown username, a wrong password and a wrong TOTP
// code, so responses cannot be used to probe which part was wrong.
func (h *LoginHandler) fail(w http.ResponseWriter, r *http.Request, code int, message string) {
	if httpx.WantsJSON(r) {
		httpx.WriteError(w, r, code, message)
		return
	}
	http.Redirect(w, r, "/?error="+url.QueryEscape(message), http.StatusFound)
}

func isJSONBody(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
