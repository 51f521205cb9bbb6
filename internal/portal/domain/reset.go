package domain

import "time"

// ResetTokenTTL is how long a password reset link stays usable.
const ResetTokenTTL = 1 * time.Hour

// PasswordReset is a stored reset request. Only the fingerprint of the
// emailed token is kept; the raw token exists in the email alone.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the emailed token
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (p PasswordReset) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// EmailVerification is a stored email confirmation token, fingerprinted
// the same way as password resets.
type EmailVerification struct {
	ID        string
	UserID    string
	TokenHash string
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (v EmailVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// VerificationTTL is how long an email confirmation link stays usable.
const VerificationTTL = 24 * time.Hour
