package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mveljko/gatehouse/pkg/slogx"
)

// ErrorBody is the structured error envelope every failure path renders.
// Error is a string or list of strings; RequestID correlates the response
// with server-side log lines.
type ErrorBody struct {
	Error     any     `json:"error"`
	RequestID *string `json:"request_id"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders the standard error envelope, echoing the request
// correlation ID from context.
func WriteError(w http.ResponseWriter, r *http.Request, code int, message any) {
	var reqID *string
	if id := slogx.RequestID(r.Context()); id != "" {
		reqID = &id
	}
	WriteJSON(w, code, ErrorBody{Error: message, RequestID: reqID})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for anything that carries tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WantsJSON reports whether the client is a JSON API consumer rather than a
// browser form. Auth failures render a JSON envelope for the former and a
// redirect for the latter.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
