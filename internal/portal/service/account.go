package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/cryptox"
	"github.com/tramita/portal/pkg/idx"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
)

const minPasswordLength = 10

// CheckPasswordStrength enforces the portal's password floor: length
// plus at least one letter and one digit. Municipal policy, not NIST's
// finest, but it kills the worst of the breach lists.
func CheckPasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return domain.ErrWeakPassword
	}
	return nil
}

// AccountService covers registration and email verification.
type AccountService struct {
	Store  store.Store
	Mailer Mailer

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Register creates a citizen account and emails a verification link.
// New accounts always start as USER with an unverified email.
func (s *AccountService) Register(ctx context.Context, email, fullName, password string) (domain.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := CheckPasswordStrength(password); err != nil {
		return domain.Profile{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Profile{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         tokenx.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Profile{}, err
	}
	verification := domain.EmailVerification{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(domain.VerificationTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return domain.ErrEmailTaken
			}
			return err
		}
		return tx.Verifications().Create(ctx, verification)
	})
	if err != nil {
		return domain.Profile{}, err
	}

	if err := s.Mailer.SendVerification(ctx, user.Email, raw); err != nil {
		return domain.Profile{}, err
	}

	slogx.FromContext(ctx).Info("account registered", "user_id", user.ID)
	return user.Profile(), nil
}

// VerifyEmail redeems an emailed verification token. Single use, but
// verifying an already-verified account through a fresh token is fine.
func (s *AccountService) VerifyEmail(ctx context.Context, rawToken string) error {
	verification, err := s.Store.Verifications().GetByTokenHash(ctx, cryptox.FingerprintToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrVerifyTokenInvalid
		}
		return err
	}
	if verification.Consumed || verification.Expired(s.now()) {
		return domain.ErrVerifyTokenInvalid
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		used, err := tx.Verifications().Consume(ctx, verification.ID)
		if err != nil {
			return err
		}
		if !used {
			return domain.ErrVerifyTokenInvalid
		}
		return tx.Users().MarkEmailVerified(ctx, verification.UserID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("email verified", "user_id", verification.UserID)
	return nil
}
