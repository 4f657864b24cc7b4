package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength rejects secrets shorter than the HS256 output size.
// A short secret makes the signature brute-forceable, which defeats the
// whole scheme, so construction fails rather than limping along.
const MinSecretLength = 32

// HS256 signs and verifies session tokens with a single symmetric secret.
// It implements both halves because the issuer and the verifier are the
// same process in this system.
type HS256 struct {
	secret []byte
	issuer string
}

// NewHS256 creates a signer/verifier from a shared secret. An absent or
// weak secret is a configuration error, not a runtime one: the caller must
// refuse to start.
func NewHS256(secret, issuer string) (*HS256, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinSecretLength)
	}
	return &HS256{secret: []byte(secret), issuer: issuer}, nil
}

// Issuer returns the configured "iss" value.
func (h *HS256) Issuer() string { return h.issuer }

// Sign takes claims and turns them into a signed compact JWT string.
func (h *HS256) Sign(claims SessionClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(h.secret)
}

// Verify validates the JWT string and returns its parsed claims. Any
// malformed input, algorithm confusion, bad signature, expired or
// not-yet-valid token comes back as an error; callers that need a boolean
// treat every error as "invalid".
func (h *HS256) Verify(tokenStr string) (SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return h.secret, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return SessionClaims{}, errors.New("jwtx: invalid token claims")
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return SessionClaims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return SessionClaims{}, err
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return SessionClaims{}, ErrInvalidClaim
	}
	if claims.ID == "" {
		return SessionClaims{}, ErrInvalidClaim
	}

	return *claims, nil
}

// Decode parses the claims without any signature or expiry validation.
// The revocation check uses this so a token that fails full verification
// still can't panic the lookup path.
func (h *HS256) Decode(tokenStr string) (SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, _, err := parser.ParseUnverified(tokenStr, &SessionClaims{})
	if err != nil {
		return SessionClaims{}, ErrMalformed
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return SessionClaims{}, ErrMalformed
	}

	return *claims, nil
}
