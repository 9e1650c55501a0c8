package auth

import (
	"errors"
	"time"
)

// TokenTTL is the lifetime of a bearer token.
const TokenTTL = 8 * time.Hour

var (
	// ErrInvalidToken covers every structural, signature and expiry failure.
	// The cases are deliberately not distinguished to the caller so that an
	// attacker cannot tell "expired" from "forged".
	ErrInvalidToken = errors.New("invalid token")

	// ErrSigningKeyMissing means neither persisted settings nor the
	// environment provide a signing key. Operational, not user-caused.
	ErrSigningKeyMissing = errors.New("token signing key not configured")
)

// TokenClaims are the claims carried by a bearer token. Tokens are signed,
// not encrypted, so the claims are attacker-visible once decoded: nothing
// beyond the subject id and the admin flag may ever be embedded.
type TokenClaims struct {
	UserID    string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}
