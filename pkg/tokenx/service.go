package tokenx

import (
	"context"
	"log/slog"
	"time"
)

// Service issues, verifies, refreshes and revokes session tokens.
//
// Verification order matters: signature first, then expiry, then the
// revocation list. A request that fails an earlier check never touches
// the revocation store.
type Service struct {
	Signer      Signer
	Verifier    Verifier
	Revocations RevocationStore
	Issuer      string

	// Lifetime of issued tokens. Zero means DefaultLifetime (24h).
	Lifetime time.Duration

	// FailOpen controls what happens when the revocation store is
	// unreachable. The default (false) fails closed: a token we cannot
	// check against the revocation list is treated as revoked. Flipping
	// this trades that guarantee for availability.
	FailOpen bool

	// Clock is overridable for tests. Nil means time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) lifetime() time.Duration {
	if s.Lifetime > 0 {
		return s.Lifetime
	}
	return DefaultLifetime
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Issue mints a signed session token for the identity. The identity is
// read from the user store by the caller; nothing here mutates it.
func (s *Service) Issue(ctx context.Context, id Identity) (string, time.Time, error) {
	claims := NewSessionClaims(id, s.Issuer, s.lifetime(), s.now())

	raw, err := s.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, claims.ExpiresAt.Time, nil
}

// Verify validates signature, expiry, and revocation status, returning
// the embedded claims on success.
func (s *Service) Verify(ctx context.Context, raw string) (Claims, error) {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return Claims{}, err
	}

	if err := claims.validateExpiry(s.now()); err != nil {
		return Claims{}, err
	}

	revoked, err := s.Revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		if s.FailOpen {
			s.log().Warn("revocation store unavailable, allowing token", "err", err)
			return claims, nil
		}
		s.log().Error("revocation store unavailable, rejecting token", "err", err)
		return Claims{}, ErrRevokedToken
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}

	return claims, nil
}

// ExpiresIn reports the remaining lifetime of a signature-valid token.
// Zero or negative means already expired. Revocation is not consulted;
// this is a clock question, not a policy question.
func (s *Service) ExpiresIn(raw string) (time.Duration, error) {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return 0, err
	}
	return claims.ExpiresIn(s.now()), nil
}

// Refresh exchanges a still-valid token for a fresh one carrying the same
// subject, role, and email-verification status but a later expiry and a
// new token ID. The old token is NOT revoked; it simply ages out. Two
// concurrent refreshes of the same token may both succeed, which is fine.
func (s *Service) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.Issue(ctx, claims.Identity())
}

// Logout revokes the token's ID until its natural expiry, after which the
// record is swept. Logging out an already-expired token is a no-op that
// still succeeds; the client just wants its cookie gone.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return err
	}

	exp := s.now().Add(s.lifetime())
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return s.Revocations.Revoke(ctx, claims.ID, exp)
}
