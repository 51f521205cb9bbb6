package tokenx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, and
	// signatures from keys outside the KeySet.
	ErrInvalidToken = errors.New("tokenx: invalid token")
	ErrExpiredToken = errors.New("tokenx: token expired")
	ErrRevokedToken = errors.New("tokenx: token revoked")
)

// Verifier is the read half of the signing capability pair: it checks the
// signature and issuer and hands back claims. Expiry and revocation are
// the Service's job, so the same parse can serve both Verify and
// ExpiresIn (which must work on already-expired tokens).
type Verifier interface {
	Verify(raw string) (Claims, error)
}

type edVerifier struct {
	keys   *KeySet
	issuer string
}

// NewVerifier creates a verifier using a KeySet of Ed25519 public keys.
func NewVerifier(keys *KeySet, issuer string) Verifier {
	return &edVerifier{keys: keys, issuer: issuer}
}

func (v *edVerifier) Verify(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// Expiry is validated by the caller with its own clock.
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("tokenx: missing kid")
		}
		return v.keys.Get(kid)
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, ErrInvalidToken
	}

	return *claims, nil
}
