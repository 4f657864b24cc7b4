package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// RegisterHandler serves POST /register. The body is JSON; the chain has
// already validated it syntactically.
type RegisterHandler struct {
	Users *service.UserService
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	// OTPAuthURL is present only when TOTP enrollment was requested.
	// Clients render it as a QR code for the authenticator app.
	OTPAuthURL string `json:"otpauth_url,omitempty"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Users.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserExists):
			httpx.WriteError(w, r, http.StatusConflict, "username or email already taken")
		default:
			slogx.FromContext(r.Context()).Error("registration failed",
				slog.String("error", err.Error()))
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		Message:    "account created",
		UserID:     result.UserID,
		OTPAuthURL: result.OTPAuthURL,
	})
}
