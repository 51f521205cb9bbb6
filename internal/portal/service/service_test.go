package service_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/internal/portal/store/drivers/sqlite"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/tokenx"
	"github.com/tramita/portal/pkg/totpx"
)

// captureMailer records outgoing tokens instead of sending anything.
type captureMailer struct {
	mu            sync.Mutex
	verifications map[string]string // email -> raw token
	resets        map[string]string
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
}

func (m *captureMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[email] = token
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[email] = token
	return nil
}

func (m *captureMailer) lastReset(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}

func (m *captureMailer) lastVerification(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifications[email]
}

// fixture wires the real store, token service, limiter, and TOTP engine
// onto one controllable clock.
type fixture struct {
	now time.Time

	st      store.Store
	tokens  *tokenx.Service
	limiter *limitx.Limiter
	totp    *totpx.Engine
	mailer  *captureMailer

	auth      *service.AuthService
	twoFactor *service.TwoFactorService
	reset     *service.ResetService
	accounts  *service.AccountService
	directory *service.DirectoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC), mailer: newCaptureMailer()}
	clock := func() time.Time { return f.now }

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	f.st = st

	signer, err := tokenx.GenerateSigner("test-key")
	require.NoError(t, err)
	keys := tokenx.NewKeySet()
	keys.AddSigner(signer)

	revocations := store.NewRevocationAdapter(st)
	revocations.Clock = clock

	f.tokens = &tokenx.Service{
		Signer:      signer,
		Verifier:    tokenx.NewVerifier(keys, "tramita-portal"),
		Revocations: revocations,
		Issuer:      "tramita-portal",
		Clock:       clock,
		Logger:      slog.Default(),
	}

	buckets := limitx.NewMemoryStore()
	buckets.Clock = clock
	f.limiter = limitx.New(buckets)

	f.totp = totpx.NewEngine("Tramita")
	f.totp.Clock = clock

	f.auth = &service.AuthService{Store: st, Tokens: f.tokens, Limiter: f.limiter, TOTP: f.totp, Clock: clock}
	f.twoFactor = &service.TwoFactorService{Store: st, TOTP: f.totp, Clock: clock}
	f.reset = &service.ResetService{Store: st, Limiter: f.limiter, Mailer: f.mailer, Clock: clock}
	f.accounts = &service.AccountService{Store: st, Mailer: f.mailer, Clock: clock}
	f.directory = &service.DirectoryService{Store: st}

	return f
}

const goodPassword = "hunter2 but longer 42"

// register creates a verified account and returns its user ID.
func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()

	profile, err := f.accounts.Register(ctx, email, "Ana García", goodPassword)
	require.NoError(t, err)

	require.NoError(t, f.accounts.VerifyEmail(ctx, f.mailer.lastVerification(email)))
	return profile.ID
}

// enable2FA runs enrolment and activation, returning the shared secret.
func (f *fixture) enable2FA(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()

	enrolled, err := f.twoFactor.Enroll(ctx, userID)
	require.NoError(t, err)

	code, err := f.totp.Generate(enrolled.Secret)
	require.NoError(t, err)
	require.NoError(t, f.twoFactor.Activate(ctx, userID, code))

	return enrolled.Secret
}
