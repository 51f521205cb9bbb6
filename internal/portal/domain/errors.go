package domain

import "errors"

// ErrInvalidCredentials covers both unknown email and wrong password;
// callers must not be able to tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrEmailUnverified = errors.New("email not verified")
	ErrWeakPassword    = errors.New("password too weak")
)

// Two-factor flow.
var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrChallengeConsumed  = errors.New("challenge already used")
	ErrChallengeExhausted = errors.New("too many failed codes")
	ErrCodeMismatch       = errors.New("code does not match")
	ErrTwoFactorEnabled   = errors.New("two-factor already enabled")
	ErrTwoFactorPending   = errors.New("no pending two-factor enrolment")
)

// Password reset and email verification.
var (
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
	ErrVerifyTokenInvalid = errors.New("verification token invalid or expired")
)
