package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/mveljko/gatehouse/pkg/cryptox"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// CsrfGuard implements the double-submit cookie pattern: a random secret
// lives in a script-readable cookie and must be echoed back in a header or
// form field on every state-changing request. An attacker who cannot read
// our cookies cross-origin cannot produce a matching pair.
type CsrfGuard struct {
	CookieName string
	HeaderName string
	FieldName  string
	TTL        time.Duration
}

// NewCsrfGuard returns a guard with the conventional cookie/header/field
// names.
func NewCsrfGuard() *CsrfGuard {
	return &CsrfGuard{
		CookieName: "csrf_token",
		HeaderName: "X-CSRF-Token",
		FieldName:  "_csrf_token",
		TTL:        time.Hour,
	}
}

type csrfTokenKey struct{}

// CsrfToken returns the session's CSRF secret from context so views can
// render it into hidden form fields. Empty outside the guard middleware.
func CsrfToken(ctx context.Context) string {
	tok, _ := ctx.Value(csrfTokenKey{}).(string)
	return tok
}

// Middleware provisions the token on safe methods and verifies it on unsafe
// ones. Safe methods never block, they only provision.
func (g *CsrfGuard) Middleware() Wrap {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				token := g.EnsureToken(w, r)
				ctx := context.WithValue(r.Context(), csrfTokenKey{}, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			provided := g.providedToken(r)
			stored := ""
			if c, err := r.Cookie(g.CookieName); err == nil {
				stored = c.Value
			}

			if !g.Verify(provided, stored) {
				// One generic failure for every cause. Which half was
				// missing or wrong is exactly what a forger wants to know.
				slogx.FromContext(r.Context()).Warn("csrf validation failed", "path", r.URL.Path)
				failure := CSRFError()
				WriteError(w, r, failure.Status, failure.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// EnsureToken idempotently creates the CSRF cookie if none exists and
// returns the current secret.
func (g *CsrfGuard) EnsureToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(g.CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	token, err := cryptox.GenerateHexToken(32)
	if err != nil {
		// Exhausted entropy is not something we can limp past.
		panic(err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.TTL / time.Second),
		Secure:   r.TLS != nil,
		HttpOnly: false, // must stay script-readable for the double submit
		SameSite: http.SameSiteStrictMode,
	})

	return token
}

// Verify requires both values non-empty and byte-equal in constant time.
// A missing cookie or missing submitted value is a verification failure,
// never "no CSRF required".
func (g *CsrfGuard) Verify(provided, stored string) bool {
	if provided == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}

// providedToken pulls the submitted secret from the request header or, for
// classic form posts, the hidden form field.
func (g *CsrfGuard) providedToken(r *http.Request) string {
	if v := r.Header.Get(g.HeaderName); v != "" {
		return v
	}
	// ParseForm only consumes the body for urlencoded posts, so JSON
	// requests (which must use the header) pass through untouched.
	if err := r.ParseForm(); err == nil {
		return r.PostForm.Get(g.FieldName)
	}
	return ""
}
