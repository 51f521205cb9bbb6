package service

import (
	"context"
	"errors"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/totpx"
)

// TwoFactorService manages TOTP enrolment. Enrolment is two phases:
// Enroll provisions a secret, Activate proves the authenticator has it.
// Until activation the account logs in on password alone.
type TwoFactorService struct {
	Store store.Store
	TOTP  *totpx.Engine

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Enroll provisions a fresh TOTP secret for the account. Re-enrolling
// before activation simply replaces the pending secret; an activated
// account must disable first.
func (s *TwoFactorService) Enroll(ctx context.Context, userID string) (domain.EnrollResponse, error) {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.EnrollResponse{}, domain.ErrUserNotFound
		}
		return domain.EnrollResponse{}, err
	}
	if user.TwoFactorEnabled() {
		return domain.EnrollResponse{}, domain.ErrTwoFactorEnabled
	}

	provisioned, err := s.TOTP.NewSecret(user.Email)
	if err != nil {
		return domain.EnrollResponse{}, err
	}

	if err := s.Store.Users().SetTOTPSecret(ctx, userID, provisioned.Secret); err != nil {
		return domain.EnrollResponse{}, err
	}

	slogx.FromContext(ctx).Info("2fa enrolment started", "user_id", userID)
	return domain.EnrollResponse{
		Secret: provisioned.Secret,
		URL:    provisioned.URL,
		Issuer: s.TOTP.Issuer,
	}, nil
}

// Activate turns enrolment on after the citizen proves their app holds
// the secret by submitting one valid code.
func (s *TwoFactorService) Activate(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	if user.TwoFactorEnabled() {
		return domain.ErrTwoFactorEnabled
	}
	if user.TOTPSecret == nil {
		return domain.ErrTwoFactorPending
	}

	ok, err := s.TOTP.Verify(*user.TOTPSecret, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeMismatch
	}

	if err := s.Store.Users().EnableTOTP(ctx, userID, s.now()); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("2fa activated", "user_id", userID)
	return nil
}

// Disable turns two-factor off again. It demands a current code so a
// hijacked session cannot silently weaken the account.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	if !user.TwoFactorEnabled() {
		return domain.ErrTwoFactorPending
	}

	ok, err := s.TOTP.Verify(*user.TOTPSecret, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeMismatch
	}

	if err := s.Store.Users().DisableTOTP(ctx, userID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("2fa disabled", "user_id", userID)
	return nil
}
