package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/jwtx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified session claims the auth gate
// stored for this request. The bool is false on unauthenticated routes.
func ClaimsFromContext(ctx context.Context) (jwtx.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwtx.SessionClaims)
	return claims, ok
}

// requireAuth rejects requests without a live access token. JSON clients
// get a 401 envelope, browsers get a redirect to the login page. On
// success the verified claims ride the request context, which is why this
// is the continuation-accepting variant: it has to hand downstream a
// different request.
func (rt *Router) requireAuth() httpx.Wrap {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func() {
				if httpx.WantsJSON(r) {
					httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				} else {
					http.Redirect(w, r, "/", http.StatusFound)
				}
			}

			cookie, err := r.Cookie(service.AccessCookieName)
			if err != nil || cookie.Value == "" {
				deny()
				return
			}

			claims, err := rt.TokenService.Validate(r.Context(), cookie.Value, jwtx.KindAccess)
			if err != nil {
				slogx.FromContext(r.Context()).Info("rejected access token",
					slog.String("error", err.Error()))
				deny()
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// guestOnly bounces authenticated users to the dashboard. A stale or
// invalid token does not count as authenticated, the request proceeds
// as a guest.
func (rt *Router) guestOnly() httpx.Gate {
	return func(w http.ResponseWriter, r *http.Request) bool {
		cookie, err := r.Cookie(service.AccessCookieName)
		if err != nil || cookie.Value == "" {
			return false
		}
		if _, err := rt.TokenService.Validate(r.Context(), cookie.Value, jwtx.KindAccess); err != nil {
			return false
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return true
	}
}

// rateLimit counts this request against the action's fixed-window budget,
// keyed by client IP. Denials carry the standard 429 envelope.
func (rt *Router) rateLimit(action string) httpx.Gate {
	return func(w http.ResponseWriter, r *http.Request) bool {
		if rt.RateLimiter.Allow(r.Context(), action, httpx.ClientIP(r)) {
			return false
		}
		httpx.WriteError(w, r, http.StatusTooManyRequests, "too many requests, try again later")
		return true
	}
}
