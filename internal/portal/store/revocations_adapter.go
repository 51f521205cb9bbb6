package store

import (
	"context"
	"time"

	"github.com/tramita/portal/pkg/tokenx"
)

// RevocationAdapter adapts a store's Revocations repo to the
// tokenx.RevocationStore interface, so logouts persist across restarts
// and hold on every instance sharing the database.
type RevocationAdapter struct {
	store Store

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

var _ tokenx.RevocationStore = (*RevocationAdapter)(nil)

func NewRevocationAdapter(store Store) *RevocationAdapter {
	return &RevocationAdapter{store: store}
}

func (a *RevocationAdapter) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a *RevocationAdapter) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return a.store.Revocations().Revoke(ctx, tokenID, expiresAt)
}

func (a *RevocationAdapter) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return a.store.Revocations().IsRevoked(ctx, tokenID)
}

func (a *RevocationAdapter) Sweep(ctx context.Context) error {
	_, err := a.store.Revocations().DeleteExpired(ctx, a.now())
	return err
}
