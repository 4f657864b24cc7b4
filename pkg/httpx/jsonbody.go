package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxJSONBody caps request bodies so a hostile client can't balloon memory.
const maxJSONBody = 1 << 20 // 1 MiB

type jsonBodyKey struct{}

// JSONInput enforces an application/json body on the route, validates that
// it parses, and stashes the raw payload in context for the handler to
// decode into its own input struct.
func JSONInput() Wrap {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
				WriteError(w, r, http.StatusBadRequest, "expected Content-Type: application/json")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
			if err != nil {
				WriteError(w, r, http.StatusBadRequest, "unable to read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !json.Valid(body) {
				WriteError(w, r, http.StatusBadRequest, "invalid JSON payload")
				return
			}

			ctx := context.WithValue(r.Context(), jsonBodyKey{}, json.RawMessage(body))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DecodeJSON unmarshals the payload captured by JSONInput into v. Unknown
// fields are rejected so typos in client payloads surface as 400s instead
// of silently-zero fields.
func DecodeJSON(r *http.Request, v any) error {
	raw, ok := r.Context().Value(jsonBodyKey{}).(json.RawMessage)
	if !ok {
		// Route was not wired through JSONInput; fall back to the body.
		dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
