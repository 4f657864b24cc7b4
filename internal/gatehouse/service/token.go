package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mveljko/gatehouse/internal/gatehouse/domain"
	"github.com/mveljko/gatehouse/pkg/jwtx"
	"github.com/mveljko/gatehouse/pkg/kvx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	// allowPrefix namespaces the allow-list entries in the shared token
	// store. Full key shape: auth:allow:<kind>:<jti>.
	allowPrefix = "auth:allow:"
)

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrTokenRevoked   = errors.New("token_revoked")
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
)

// TokenService issues and validates session JWTs. Revocation uses an
// allow-list: every issued token's jti is written to the key-value store
// with a TTL matching the token lifetime, and a token is only live while
// its entry exists. Logout deletes the entries; absence means revoked.
// This makes the store the single source of truth for liveness, and a
// lost store entry fails towards "revoked" rather than "valid".
type TokenService struct {
	Signer     *jwtx.HS256
	Store      kvx.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// CookieSecure marks auth cookies Secure. Disabled only in local dev.
	CookieSecure bool
}

func allowKey(kind, jti string) string {
	return allowPrefix + kind + ":" + jti
}

// IssueTokens mints a fresh access/refresh pair for the user and records
// both jtis in the allow-list.
func (s *TokenService) IssueTokens(ctx context.Context, userID string) (*domain.TokenPair, error) {
	now := time.Now()

	accessClaims := jwtx.NewSessionClaims(userID, jwtx.KindAccess, s.Signer.Issuer(), s.AccessTTL, now)
	access, err := s.Signer.Sign(accessClaims)
	if err != nil {
		return nil, err
	}

	refreshClaims := jwtx.NewSessionClaims(userID, jwtx.KindRefresh, s.Signer.Issuer(), s.RefreshTTL, now)
	refresh, err := s.Signer.Sign(refreshClaims)
	if err != nil {
		return nil, err
	}

	if err := s.allow(ctx, accessClaims); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, refreshClaims); err != nil {
		// Roll back the access entry so a half-issued pair cannot linger.
		_ = s.Store.Del(ctx, allowKey(jwtx.KindAccess, accessClaims.ID))
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Validate checks a raw token end to end: signature, expiry, kind, and
// allow-list membership. It returns the claims only when every check
// passes, so any failure, including a store outage, leaves the request
// unauthenticated.
func (s *TokenService) Validate(ctx context.Context, raw, kind string) (jwtx.SessionClaims, error) {
	claims, err := s.Signer.Verify(raw)
	if err != nil {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}
	if err := claims.ValidateKind(kind); err != nil {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}

	revoked, err := s.IsRevoked(ctx, claims)
	if err != nil || revoked {
		return jwtx.SessionClaims{}, ErrTokenRevoked
	}
	return claims, nil
}

// IsRevoked reports whether the token's allow-list entry is gone. A store
// error also reports revoked; denying a live session is recoverable,
// honouring a revoked one is not.
func (s *TokenService) IsRevoked(ctx context.Context, claims jwtx.SessionClaims) (bool, error) {
	_, err := s.Store.Get(ctx, allowKey(claims.Kind, claims.ID))
	if err != nil {
		if errors.Is(err, kvx.ErrNotFound) {
			return true, nil
		}
		slogx.FromContext(ctx).Error("allow-list lookup failed, treating token as revoked",
			slog.String("error", err.Error()))
		return true, err
	}
	return false, nil
}

// Revoke removes the token's allow-list entry. Revoking an already
// revoked token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, claims jwtx.SessionClaims) error {
	return s.Store.Del(ctx, allowKey(claims.Kind, claims.ID))
}

// RevokeRaw revokes a token given only its wire form. The signature is
// not re-verified: deleting an allow-list entry for a forged token is
// harmless, and logout should succeed even for an expired access token.
func (s *TokenService) RevokeRaw(ctx context.Context, raw string) error {
	claims, err := s.Signer.Decode(raw)
	if err != nil {
		return nil
	}
	return s.Revoke(ctx, claims)
}

// Refresh rotates a session: it validates the refresh token, revokes the
// old pair, and issues a new one. The old refresh token is dead after
// this call regardless of whether the caller ever uses the new pair.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh, rawAccess string) (*domain.TokenPair, error) {
	claims, err := s.Validate(ctx, rawRefresh, jwtx.KindRefresh)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	if err := s.Revoke(ctx, claims); err != nil {
		return nil, err
	}
	// The paired access token may already be expired; best effort.
	if rawAccess != "" {
		_ = s.RevokeRaw(ctx, rawAccess)
	}

	return s.IssueTokens(ctx, claims.Subject)
}

// SetAuthCookies writes the pair as HttpOnly cookies. The access cookie
// expires with the token; the refresh cookie lives for the refresh TTL
// and is scoped to the whole site so the refresh endpoint and logout can
// both see it.
func (s *TokenService) SetAuthCookies(w http.ResponseWriter, pair *domain.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(s.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(s.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies expires both auth cookies.
func (s *TokenService) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (s *TokenService) allow(ctx context.Context, claims jwtx.SessionClaims) error {
	ttl := claims.TTL(time.Now())
	if ttl <= 0 {
		return ErrInvalidToken
	}
	return s.Store.SetEx(ctx, allowKey(claims.Kind, claims.ID), claims.Subject, ttl)
}
