package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func csrfProtected(guard *httpx.CsrfGuard) http.Handler {
	return httpx.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		guard.Middleware(),
	)
}

func TestCsrfVerify(t *testing.T) {
	t.Parallel()
	guard := httpx.NewCsrfGuard()

	t.Run("matching pair passes", func(t *testing.T) {
		require.True(t, guard.Verify("ABC", "ABC"))
	})

	t.Run("mismatch fails", func(t *testing.T) {
		require.False(t, guard.Verify("ABC", "ABD"))
	})

	t.Run("missing cookie fails", func(t *testing.T) {
		require.False(t, guard.Verify("ABC", ""))
	})

	t.Run("missing submitted value fails", func(t *testing.T) {
		require.False(t, guard.Verify("", "ABC"))
	})

	t.Run("both missing fails", func(t *testing.T) {
		require.False(t, guard.Verify("", ""))
	})
}

func TestCsrfProvisioningOnSafeRequests(t *testing.T) {
	t.Parallel()
	guard := httpx.NewCsrfGuard()
	handler := csrfProtected(guard)

	t.Run("GET without cookie provisions one", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "csrf_token", cookies[0].Name)
		require.NotEmpty(t, cookies[0].Value)
		require.False(t, cookies[0].HttpOnly, "csrf cookie must stay script-readable")
		require.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	})

	t.Run("GET with existing cookie is idempotent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing"})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Result().Cookies(), "no new cookie when one exists")
	})
}

func TestCsrfVerificationOnUnsafeRequests(t *testing.T) {
	t.Parallel()
	guard := httpx.NewCsrfGuard()
	handler := csrfProtected(guard)

	post := func(cookie, header, field string) *httptest.ResponseRecorder {
		var req *http.Request
		if field != "" {
			form := url.Values{"_csrf_token": {field}}
			req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		} else {
			req = httptest.NewRequest(http.MethodPost, "/login", nil)
		}
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: cookie})
		}
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("form field match passes", func(t *testing.T) {
		require.Equal(t, http.StatusOK, post("ABC", "", "ABC").Code)
	})

	t.Run("header match passes", func(t *testing.T) {
		require.Equal(t, http.StatusOK, post("ABC", "ABC", "").Code)
	})

	t.Run("mismatch fails", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, post("ABC", "", "ABD").Code)
	})

	t.Run("missing cookie with present field fails", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, post("", "", "ABC").Code)
	})

	t.Run("present cookie with missing field fails", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, post("ABC", "", "").Code)
	})

	t.Run("failure body is generic and structured", func(t *testing.T) {
		recMissing := post("", "", "ABC")
		recMismatch := post("ABC", "", "ABD")

		var missing, mismatch httpx.ErrorBody
		require.NoError(t, json.Unmarshal(recMissing.Body.Bytes(), &missing))
		require.NoError(t, json.Unmarshal(recMismatch.Body.Bytes(), &mismatch))

		// Must not leak whether the cookie was missing vs mismatched.
		require.Equal(t, missing.Error, mismatch.Error)
	})
}
