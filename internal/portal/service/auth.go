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
	"github.com/tramita/portal/pkg/tokenx"
	"github.com/tramita/portal/pkg/totpx"
)

// Attempt budgets for the credential-guessing surfaces. Each is a
// (points, window) pair fed to the limiter.
const (
	LoginAction = "login"
	LoginPoints = 5
	LoginWindow = 5 * time.Minute

	TwoFactorAction = "2fa_verify"
	TwoFactorPoints = 3
	TwoFactorWindow = 5 * time.Minute

	ResetAction = "password_reset"
	ResetPoints = 3
	ResetWindow = 1 * time.Hour
)

// ErrTooManyAttempts reports a blown attempt budget. Handlers map it to
// 429 regardless of which budget tripped.
var ErrTooManyAttempts = errors.New("too_many_attempts")

// AuthService runs the password and two-factor login flow.
type AuthService struct {
	Store   store.Store
	Tokens  *tokenx.Service
	Limiter *limitx.Limiter
	TOTP    *totpx.Engine

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// LoginResult is either a session (Token set) or a pending second
// factor (Challenge set), never both.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Challenge *domain.ChallengeResponse
}

// Login checks the password and either issues a session directly or
// opens a two-factor challenge. Attempts are budgeted per email so a
// guessing run against one account cannot also lock out others, and
// unknown emails burn budget exactly like wrong passwords.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := slogx.FromContext(ctx)

	if s.Limiter.Check(ctx, email, LoginAction, LoginPoints, LoginWindow) {
		log.Info("login blocked by attempt budget", "email", email)
		return LoginResult{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Info("login password mismatch", "user_id", user.ID)
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if user.TwoFactorEnabled() {
		challenge, err := s.openChallenge(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Challenge: &challenge}, nil
	}

	token, expiresAt, err := s.Tokens.Issue(ctx, user.Identity())
	if err != nil {
		return LoginResult{}, err
	}

	log.Info("login succeeded", "user_id", user.ID)
	return LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// openChallenge starts a fresh two-factor challenge, superseding any
// pending one: exactly one outstanding challenge per subject.
func (s *AuthService) openChallenge(ctx context.Context, userID string) (domain.ChallengeResponse, error) {
	now := s.now()
	challenge := domain.TwoFactorChallenge{
		ID:        idx.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ChallengeTTL),
	}
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().DeleteForUser(ctx, userID); err != nil {
			return err
		}
		return tx.Challenges().Create(ctx, challenge)
	})
	if err != nil {
		return domain.ChallengeResponse{}, err
	}

	return domain.ChallengeResponse{
		TwoFactorRequired: true,
		ChallengeToken:    challenge.ID,
		ExpiresIn:         int64(domain.ChallengeTTL / time.Second),
	}, nil
}

// VerifyChallenge completes a pending two-factor login. The challenge
// is single use: the first correct code consumes it, and a consumed,
// expired, or exhausted challenge never yields a token. Wrong codes
// burn both the per-challenge attempt counter and the per-subject
// budget.
func (s *AuthService) VerifyChallenge(ctx context.Context, challengeToken, code string) (string, time.Time, error) {
	log := slogx.FromContext(ctx)

	challenge, err := s.Store.Challenges().Get(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", time.Time{}, domain.ErrChallengeNotFound
		}
		return "", time.Time{}, err
	}

	if s.Limiter.Check(ctx, challenge.UserID, TwoFactorAction, TwoFactorPoints, TwoFactorWindow) {
		log.Info("2fa blocked by attempt budget", "user_id", challenge.UserID)
		return "", time.Time{}, ErrTooManyAttempts
	}

	switch {
	case challenge.Consumed:
		return "", time.Time{}, domain.ErrChallengeConsumed
	case challenge.Expired(s.now()):
		return "", time.Time{}, domain.ErrChallengeExpired
	case challenge.Attempts >= domain.MaxChallengeAttempts:
		return "", time.Time{}, domain.ErrChallengeExhausted
	}

	user, err := s.Store.Users().GetByID(ctx, challenge.UserID)
	if err != nil {
		return "", time.Time{}, err
	}
	if user.TOTPSecret == nil {
		return "", time.Time{}, domain.ErrTwoFactorPending
	}

	ok, err := s.TOTP.Verify(*user.TOTPSecret, code)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		if err := s.Store.Challenges().BumpAttempts(ctx, challenge.ID); err != nil {
			return "", time.Time{}, err
		}
		log.Info("2fa code mismatch", "user_id", user.ID, "attempts", challenge.Attempts+1)
		return "", time.Time{}, domain.ErrCodeMismatch
	}

	// Consume inside a transaction so two racing verifications of the
	// same challenge cannot both mint sessions.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		used, err := tx.Challenges().Consume(ctx, challenge.ID)
		if err != nil {
			return err
		}
		if !used {
			return domain.ErrChallengeConsumed
		}
		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.Tokens.Issue(ctx, user.Identity())
	if err != nil {
		return "", time.Time{}, err
	}

	log.Info("2fa login succeeded", "user_id", user.ID)
	return token, expiresAt, nil
}

// Logout revokes the presented session token. Invalid tokens are
// reported as-is; the handler still clears the cookie either way.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.Tokens.Logout(ctx, raw)
}
