package tokenx

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records token IDs (jti) that must fail verification
// before their natural expiry. Each record carries the token's original
// expiresAt so the list prunes itself: once a token would have expired
// anyway, its revocation record is dead weight and Sweep drops it.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Sweep removes records whose expiresAt has passed.
	Sweep(ctx context.Context) error
}

// MemoryRevocations is the in-process RevocationStore. Good enough for a
// single-instance deployment; multi-instance deployments swap in the
// database-backed store so a logout on one instance holds on all of them.
type MemoryRevocations struct {
	mu  sync.RWMutex
	ids map[string]time.Time // tokenID -> expiresAt

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: make(map[string]time.Time)}
}

func (m *MemoryRevocations) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[tokenID] = expiresAt
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[tokenID]
	return ok, nil
}

func (m *MemoryRevocations) Sweep(_ context.Context) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, exp := range m.ids {
		if now.After(exp) {
			delete(m.ids, id)
		}
	}
	return nil
}
