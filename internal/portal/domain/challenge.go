package domain

import "time"

// ChallengeTTL bounds how long a login may sit between password and code.
const ChallengeTTL = 5 * time.Minute

// MaxChallengeAttempts is the per-challenge verification budget, applied
// on top of the per-subject rate limit.
const MaxChallengeAttempts = 5

// TwoFactorChallenge is a pending second factor between a successful
// password check and a session token. It is single use: the first
// correct code consumes it, and expiry or too many wrong codes void it.
type TwoFactorChallenge struct {
	ID        string // ULID, handed to the client as challenge_token
	UserID    string
	Attempts  int
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired is boundary-exact: a challenge is dead strictly after
// ExpiresAt, never at it.
func (c TwoFactorChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeResponse tells the login client a second factor is required.
type ChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"` // always true
	ChallengeToken    string `json:"challenge_token"`
	ExpiresIn         int64  `json:"expires_in"` // seconds
}

// EnrollResponse carries a freshly provisioned TOTP secret back to the
// citizen for QR rendering. The secret stays pending until activation.
type EnrollResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	Issuer string `json:"issuer"`
}
