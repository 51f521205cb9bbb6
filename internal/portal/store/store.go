package store

import (
	"context"
	"errors"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. It exposes sub-repositories to keep concerns tidy
// and testable, and to keep transactions from nesting by accident.
type Store interface {
	Users() Users
	Challenges() Challenges
	Resets() Resets
	Verifications() Verifications
	Revocations() Revocations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: commit on nil, rollback
	// on error. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos, plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetByID(ctx context.Context, id string) (domain.User, error)

	// GetByEmail is used during login; email matching is caseless.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// Create inserts a new user (id is provided by the app via ULID).
	// A duplicate email returns ErrAlreadyExists.
	Create(ctx context.Context, u domain.User) error

	// List returns all users, newest first. Admin directory only.
	List(ctx context.Context) ([]domain.User, error)

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateRole(ctx context.Context, userID, role string) error

	// MarkEmailVerified flips the flag; idempotent.
	MarkEmailVerified(ctx context.Context, userID string) error

	// SetTOTPSecret stores a pending enrolment secret. Activation comes
	// separately via EnableTOTP.
	SetTOTPSecret(ctx context.Context, userID, secret string) error

	// EnableTOTP stamps totp_enabled, completing enrolment.
	EnableTOTP(ctx context.Context, userID string, when time.Time) error

	// DisableTOTP clears both the secret and the enabled stamp.
	DisableTOTP(ctx context.Context, userID string) error
}

type Challenges interface {
	Create(ctx context.Context, c domain.TwoFactorChallenge) error
	Get(ctx context.Context, id string) (domain.TwoFactorChallenge, error)

	// BumpAttempts increments the failed-code counter.
	BumpAttempts(ctx context.Context, id string) error

	// Consume marks the challenge used. Only the first call on a live
	// challenge reports ok=true; use it inside a transaction to make the
	// challenge single use under concurrency.
	Consume(ctx context.Context, id string) (ok bool, err error)

	// DeleteForUser drops every challenge for the user. A fresh login
	// supersedes any pending one.
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteExpired drops challenges whose expiry is at or before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Resets interface {
	Create(ctx context.Context, p domain.PasswordReset) error

	// GetByTokenHash finds a reset by the fingerprint of the emailed token.
	GetByTokenHash(ctx context.Context, hash string) (domain.PasswordReset, error)

	// Consume marks the reset used; ok mirrors Challenges.Consume.
	Consume(ctx context.Context, id string) (ok bool, err error)

	// DeleteForUser voids outstanding resets, e.g. after a password change.
	DeleteForUser(ctx context.Context, userID string) error

	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Verifications interface {
	Create(ctx context.Context, v domain.EmailVerification) error
	GetByTokenHash(ctx context.Context, hash string) (domain.EmailVerification, error)
	Consume(ctx context.Context, id string) (ok bool, err error)
	DeleteForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Revocations is the durable token denylist, keyed by token ID (jti).
// It backs tokenx.RevocationStore when the portal runs multi-instance;
// single instances can use the in-memory one instead.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired drops records for tokens past natural expiry.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
