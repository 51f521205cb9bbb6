package tokenx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultLifetime is how long a freshly issued session token lives.
const DefaultLifetime = 24 * time.Hour

// DefaultRefreshThreshold is the remaining lifetime below which the
// middleware replaces a session token with a fresh one.
const DefaultRefreshThreshold = 1 * time.Hour

// Role is the portal's two-tier authorization level.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity is what the token service reads from the user store at issuance.
// It is the only slice of the user record that ever ends up inside a token.
type Identity struct {
	SubjectID     string
	Role          Role
	EmailVerified bool
}

// Claims are the session-token claims. Keep changes additive so tokens
// issued before a deploy still parse after it.
type Claims struct {
	jwt.RegisteredClaims

	// Role of the subject at issuance time ("USER" or "ADMIN").
	Role Role `json:"role"`

	// EmailVerified mirrors the user record at issuance time. A token
	// issued before verification stays unverified until refreshed.
	EmailVerified bool `json:"email_verified"`
}

// NewSessionClaims builds claims for a session token. The token ID (jti)
// is a fresh UUID so each token can be revoked individually.
func NewSessionClaims(id Identity, issuer string, lifetime time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.NewString(),
		},
		Role:          id.Role,
		EmailVerified: id.EmailVerified,
	}
}

// Identity reconstructs the identity embedded in the claims.
func (c Claims) Identity() Identity {
	return Identity{
		SubjectID:     c.Subject,
		Role:          c.Role,
		EmailVerified: c.EmailVerified,
	}
}

// ExpiresIn returns the remaining lifetime at the given instant.
// Zero or negative means the token has already expired.
func (c Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

/// validateExpiry is boundary-exact: a token is expired strictly after its
// expiresAt instant, never at it.
func (c Claims) validateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalidToken
	}
	if now.After(c.ExpiresAt.Time) {
		return ErrExpiredToken
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrInvalidToken
	}
	return nil
}
