package tokenx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is the capability for minting session tokens. Exactly one signer
// is active at a time; rotation means pointing the service at a new one
// while the old public key stays in the KeySet for verification.
type Signer interface {
	KID() string
	Sign(Claims) (string, error)
	PublicKey() ed25519.PublicKey
}

type edSigner struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSignerFromPEM loads an Ed25519 private key from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("tokenx: invalid PEM for Ed25519 key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("tokenx: expected PRIVATE KEY, got %q (Ed25519 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("tokenx: parse PKCS8: %w", err)
	}

	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("tokenx: not Ed25519 private key")
	}

	return &edSigner{
		kid: kid,
		key: key,
		pub: key.Public().(ed25519.PublicKey),
	}, nil
}

// GenerateSigner creates a signer with a fresh ephemeral Ed25519 keypair.
// The key only lives in memory, so every session dies with a restart.
// That is the intended behavior for the portal's default deployment.
func GenerateSigner(kid string) (Signer, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("tokenx: generate Ed25519 key: %w", err)
	}
	return &edSigner{kid: kid, key: key, pub: pub}, nil
}

func (s *edSigner) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *edSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *edSigner) PublicKey() ed25519.PublicKey { return s.pub }
