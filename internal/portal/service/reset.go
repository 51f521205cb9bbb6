package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/cryptox"
	"github.com/tramita/portal/pkg/idx"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/slogx"
)

// ResetService runs the forgot-password flow. Request never discloses
// whether an email is registered; Apply validates the emailed token.
type ResetService struct {
	Store   store.Store
	Limiter *limitx.Limiter
	Mailer  Mailer

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *ResetService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Request opens a password reset for the email, if it belongs to an
// account. The caller learns nothing either way: unknown emails burn
// budget and return success just like known ones.
func (s *ResetService) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	log := slogx.FromContext(ctx)

	if s.Limiter.Check(ctx, email, ResetAction, ResetPoints, ResetWindow) {
		log.Info("password reset blocked by attempt budget", "email", email)
		return ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("password reset for unknown email")
			return nil
		}
		return err
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	now := s.now()
	reset := domain.PasswordReset{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ResetTokenTTL),
	}
	if err := s.Store.Resets().Create(ctx, reset); err != nil {
		return err
	}

	if err := s.Mailer.SendPasswordReset(ctx, user.Email, raw); err != nil {
		return err
	}

	log.Info("password reset opened", "user_id", user.ID)
	return nil
}

// Apply exchanges a valid reset token for a new password. Single use:
// the first successful apply consumes the token, and every outstanding
// reset for the account is voided alongside.
func (s *ResetService) Apply(ctx context.Context, rawToken, newPassword string) error {
	if err := CheckPasswordStrength(newPassword); err != nil {
		return err
	}

	reset, err := s.Store.Resets().GetByTokenHash(ctx, cryptox.FingerprintToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrResetTokenInvalid
		}
		return err
	}
	if reset.Consumed || reset.Expired(s.now()) {
		return domain.ErrResetTokenInvalid
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		used, err := tx.Resets().Consume(ctx, reset.ID)
		if err != nil {
			return err
		}
		if !used {
			return domain.ErrResetTokenInvalid
		}
		if err := tx.Users().UpdatePasswordHash(ctx, reset.UserID, hash); err != nil {
			return err
		}
		return tx.Resets().DeleteForUser(ctx, reset.UserID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset applied", "user_id", reset.UserID)
	return nil
}
