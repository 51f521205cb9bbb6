package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/idx"
)

func TestHousekeepingSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.register(t, "ana@example.com")

	revocations := store.NewRevocationAdapter(f.st)
	revocations.Clock = func() time.Time { return f.now }

	sweeper := service.NewHousekeepingService(f.st, f.limiter, revocations, slog.Default(), time.Minute)
	sweeper.Clock = func() time.Time { return f.now }

	// One live and one dead record per table.
	liveChallenge := domain.TwoFactorChallenge{
		ID: idx.New().String(), UserID: userID,
		CreatedAt: f.now, ExpiresAt: f.now.Add(domain.ChallengeTTL),
	}
	deadChallenge := domain.TwoFactorChallenge{
		ID: idx.New().String(), UserID: userID,
		CreatedAt: f.now.Add(-time.Hour), ExpiresAt: f.now.Add(-time.Minute),
	}
	require.NoError(t, f.st.Challenges().Create(ctx, liveChallenge))
	require.NoError(t, f.st.Challenges().Create(ctx, deadChallenge))

	liveReset := domain.PasswordReset{
		ID: idx.New().String(), UserID: userID, TokenHash: "fp-live",
		CreatedAt: f.now, ExpiresAt: f.now.Add(domain.ResetTokenTTL),
	}
	deadReset := domain.PasswordReset{
		ID: idx.New().String(), UserID: userID, TokenHash: "fp-dead",
		CreatedAt: f.now.Add(-2 * time.Hour), ExpiresAt: f.now.Add(-time.Hour),
	}
	require.NoError(t, f.st.Resets().Create(ctx, liveReset))
	require.NoError(t, f.st.Resets().Create(ctx, deadReset))

	require.NoError(t, f.st.Revocations().Revoke(ctx, "jti-live", f.now.Add(time.Hour)))
	require.NoError(t, f.st.Revocations().Revoke(ctx, "jti-dead", f.now.Add(-time.Minute)))

	sweeper.Sweep(ctx)

	_, err := f.st.Challenges().Get(ctx, deadChallenge.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.st.Challenges().Get(ctx, liveChallenge.ID)
	require.NoError(t, err)

	_, err = f.st.Resets().GetByTokenHash(ctx, "fp-dead")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.st.Resets().GetByTokenHash(ctx, "fp-live")
	require.NoError(t, err)

	revoked, err := f.st.Revocations().IsRevoked(ctx, "jti-dead")
	require.NoError(t, err)
	require.False(t, revoked)
	revoked, err = f.st.Revocations().IsRevoked(ctx, "jti-live")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestHousekeepingStartStop(t *testing.T) {
	f := newFixture(t)

	revocations := store.NewRevocationAdapter(f.st)
	sweeper := service.NewHousekeepingService(f.st, f.limiter, revocations, slog.Default(), time.Hour)

	sweeper.Start()
	sweeper.Stop()
}
