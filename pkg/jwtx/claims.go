package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds. Access and refresh tokens have independent lifetimes and
// independent revocation-index entries, so the kind travels in the claims.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Default session token lifetimes. Short access tokens limit the damage of a
// leaked cookie; the refresh token exists so users aren't logged out every
// fifteen minutes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrWrongKind    = errors.New("jwtx: wrong token kind")
)

// SessionClaims are the claims carried by both session token kinds. The jti
// doubles as the revocation-index key, so every issued token gets a fresh
// random one.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Kind is "access" or "refresh".
	Kind string `json:"kind"`
}

// NewSessionClaims builds minimally-correct claims for one token of the
// given kind.
func NewSessionClaims(subject, kind, issuer string, ttl time.Duration, now time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind: kind,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *SessionClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *SessionClaims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateKind checks the embedded token kind against the expected one.
func (c *SessionClaims) ValidateKind(expected string) error {
	if c.Kind != expected {
		return ErrWrongKind
	}
	return nil
}

// TTL returns the remaining lifetime of the token at the given instant.
// Zero or negative means already expired.
func (c *SessionClaims) TTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
