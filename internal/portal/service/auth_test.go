package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/tokenx"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a session on correct password", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")

		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		require.Nil(t, result.Challenge)
		require.NotEmpty(t, result.Token)

		claims, err := f.tokens.Verify(ctx, result.Token)
		require.NoError(t, err)
		require.Equal(t, userID, claims.Subject)
		require.Equal(t, tokenx.RoleUser, claims.Role)
		require.True(t, claims.EmailVerified)
	})

	t.Run("email is matched case-insensitively", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ana@example.com")

		result, err := f.auth.Login(ctx, "  ANA@Example.COM ", goodPassword)
		require.NoError(t, err)
		require.NotEmpty(t, result.Token)
	})

	t.Run("wrong password and unknown email look identical", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ana@example.com")

		_, err := f.auth.Login(ctx, "ana@example.com", "not the password 1")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)

		_, err = f.auth.Login(ctx, "nobody@example.com", goodPassword)
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("sixth attempt in the window is blocked", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ana@example.com")

		for i := 0; i < service.LoginPoints; i++ {
			_, err := f.auth.Login(ctx, "ana@example.com", "not the password 1")
			require.ErrorIs(t, err, domain.ErrInvalidCredentials)
		}

		// Even the correct password is refused once the budget is gone.
		_, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.ErrorIs(t, err, service.ErrTooManyAttempts)

		// Other accounts are unaffected.
		f.register(t, "bob@example.com")
		_, err = f.auth.Login(ctx, "bob@example.com", goodPassword)
		require.NoError(t, err)
	})

	t.Run("budget recovers after the window", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "ana@example.com")

		for i := 0; i < service.LoginPoints+1; i++ {
			_, err := f.auth.Login(ctx, "ana@example.com", "not the password 1")
			require.Error(t, err)
		}

		f.now = f.now.Add(service.LoginWindow + time.Second)
		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		require.NotEmpty(t, result.Token)
	})
}

func TestLoginWithTwoFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("correct password opens a challenge instead of a session", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")
		secret := f.enable2FA(t, userID)

		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		require.Empty(t, result.Token, "no session before the second factor")
		require.NotNil(t, result.Challenge)
		require.True(t, result.Challenge.TwoFactorRequired)
		require.Equal(t, int64(domain.ChallengeTTL/time.Second), result.Challenge.ExpiresIn)

		code, err := f.totp.Generate(secret)
		require.NoError(t, err)

		token, expiresAt, err := f.auth.VerifyChallenge(ctx, result.Challenge.ChallengeToken, code)
		require.NoError(t, err)
		require.True(t, expiresAt.After(f.now))

		claims, err := f.tokens.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, userID, claims.Subject)
	})

	t.Run("challenge is single use", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")
		secret := f.enable2FA(t, userID)

		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)

		code, err := f.totp.Generate(secret)
		require.NoError(t, err)

		_, _, err = f.auth.VerifyChallenge(ctx, result.Challenge.ChallengeToken, code)
		require.NoError(t, err)

		_, _, err = f.auth.VerifyChallenge(ctx, result.Challenge.ChallengeToken, code)
		require.ErrorIs(t, err, domain.ErrChallengeConsumed)
	})

	t.Run("wrong codes burn challenge attempts", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")
		secret := f.enable2FA(t, userID)

		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		challengeToken := result.Challenge.ChallengeToken

		for i := 0; i < domain.MaxChallengeAttempts; i++ {
			// The subject budget trips before the per-challenge counter;
			// clear it the way an operator would so the counter is what
			// ends the run.
			if i == service.TwoFactorPoints {
				require.NoError(t, f.limiter.Reset(ctx, userID, service.TwoFactorAction))
			}
			_, _, err := f.auth.VerifyChallenge(ctx, challengeToken, "000000")
			require.ErrorIs(t, err, domain.ErrCodeMismatch, "attempt %d", i+1)
		}

		code, err := f.totp.Generate(secret)
		require.NoError(t, err)
		_, _, err = f.auth.VerifyChallenge(ctx, challengeToken, code)
		require.ErrorIs(t, err, domain.ErrChallengeExhausted)
	})

	t.Run("a new login supersedes the pending challenge", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")
		secret := f.enable2FA(t, userID)

		first, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		second, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)
		require.NotEqual(t, first.Challenge.ChallengeToken, second.Challenge.ChallengeToken)

		code, err := f.totp.Generate(secret)
		require.NoError(t, err)

		_, _, err = f.auth.VerifyChallenge(ctx, first.Challenge.ChallengeToken, code)
		require.ErrorIs(t, err, domain.ErrChallengeNotFound)

		_, _, err = f.auth.VerifyChallenge(ctx, second.Challenge.ChallengeToken, code)
		require.NoError(t, err)
	})

	t.Run("expired challenge is refused", func(t *testing.T) {
		f := newFixture(t)
		userID := f.register(t, "ana@example.com")
		secret := f.enable2FA(t, userID)

		result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
		require.NoError(t, err)

		f.now = f.now.Add(domain.ChallengeTTL + time.Second)
		code, err := f.totp.Generate(secret)
		require.NoError(t, err)

		_, _, err = f.auth.VerifyChallenge(ctx, result.Challenge.ChallengeToken, code)
		require.ErrorIs(t, err, domain.ErrChallengeExpired)
	})

	t.Run("unknown challenge token", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.auth.VerifyChallenge(ctx, "nope", "123456")
		require.ErrorIs(t, err, domain.ErrChallengeNotFound)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "ana@example.com")

	result, err := f.auth.Login(ctx, "ana@example.com", goodPassword)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, result.Token))

	_, err = f.tokens.Verify(ctx, result.Token)
	require.ErrorIs(t, err, tokenx.ErrRevokedToken)
}
