package domain

import (
	"time"

	"github.com/tramita/portal/pkg/tokenx"
)

type User struct {
	ID            string
	Email         string
	FullName      string
	PasswordHash  string // argon2 encoded
	Role          tokenx.Role
	EmailVerified bool
	TOTPSecret    *string    // base32 encoded, nil until 2FA activated
	TOTPEnabled   *time.Time // when 2FA activation completed (nullable)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TwoFactorEnabled reports whether login must go through the 2FA
// challenge step. Enrolment alone is not enough; activation sets it.
func (u User) TwoFactorEnabled() bool {
	return u.TOTPEnabled != nil && u.TOTPSecret != nil
}

// Identity is the token-facing slice of the user record.
func (u User) Identity() tokenx.Identity {
	return tokenx.Identity{
		SubjectID:     u.ID,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// Profile is the user record as shown to its owner and to admins.
// The password hash and TOTP secret never leave the service layer.
type Profile struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	FullName      string      `json:"full_name"`
	Role          tokenx.Role `json:"role"`
	EmailVerified bool        `json:"email_verified"`
	TwoFactor     bool        `json:"two_factor_enabled"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		TwoFactor:     u.TwoFactorEnabled(),
		CreatedAt:     u.CreatedAt,
	}
}
