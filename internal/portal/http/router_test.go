package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/tramita/portal/internal/portal/http"
	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/internal/portal/store/drivers/sqlite"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/tokenx"
	"github.com/tramita/portal/pkg/totpx"
)

type discardMailer struct{}

func (discardMailer) SendVerification(context.Context, string, string) error  { return nil }
func (discardMailer) SendPasswordReset(context.Context, string, string) error { return nil }

// testServer is the full handler stack against a throwaway database.
type testServer struct {
	handler http.Handler
	st      store.Store
	tokens  *tokenx.Service
	ts      *service.TwoFactorService
	dir     *service.DirectoryService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := tokenx.GenerateSigner("test-key")
	require.NoError(t, err)
	keys := tokenx.NewKeySet()
	keys.AddSigner(signer)

	tokens := &tokenx.Service{
		Signer:      signer,
		Verifier:    tokenx.NewVerifier(keys, "tramita-portal"),
		Revocations: store.NewRevocationAdapter(st),
		Issuer:      "tramita-portal",
	}

	limiter := limitx.New(limitx.NewMemoryStore())
	totpEngine := totpx.NewEngine("Tramita")

	auth := &service.AuthService{Store: st, Tokens: tokens, Limiter: limiter, TOTP: totpEngine}
	twoFactor := &service.TwoFactorService{Store: st, TOTP: totpEngine}
	reset := &service.ResetService{Store: st, Limiter: limiter, Mailer: discardMailer{}}
	accounts := &service.AccountService{Store: st, Mailer: discardMailer{}}
	directory := &service.DirectoryService{Store: st}

	gate := httpx.NewGate(tokens, httpx.GateConfig{
		Public: []string{
			"/auth/login", "/auth/2fa/verify", "/auth/register",
			"/auth/verify-email", "/auth/reset-password", "/livez", "/readyz",
		},
		Unverified:      []string{"/auth/logout", "/me"},
		Admin:           []string{"/admin"},
		VerifyEmailPath: "/verify-email",
	})

	router := &httpapi.Router{
		Logger:   slog.Default(),
		Store:    st,
		Keys:     keys,
		Gate:     gate,
		Throttle: httpx.DefaultThrottle,

		Auth:      auth,
		TwoFactor: twoFactor,
		Reset:     reset,
		Accounts:  accounts,
		Directory: directory,
		Limiter:   limiter,

		Version:      "test",
		CookieMaxAge: time.Hour,
	}

	return &testServer{
		handler: router.Handler(),
		st:      st,
		tokens:  tokens,
		ts:      twoFactor,
		dir:     directory,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.1:1234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: httpx.CookieName, Value: token})
	}
}

// register creates an account over the wire and verifies its email
// directly in the store, returning the user's id.
func (s *testServer) register(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()

	rec := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":     email,
		"full_name": "Ana García",
		"password":  password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))

	require.NoError(t, s.st.Users().MarkEmailVerified(ctx, profile.ID))
	return profile.ID
}

// login returns the bearer token for a verified, non-2FA account.
func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

const password = "correct horse battery 9"

func TestLoginEndpoint(t *testing.T) {
	t.Run("success sets cookie and returns bearer token", func(t *testing.T) {
		s := newTestServer(t)
		s.register(t, "ana@example.com", password)

		rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "ana@example.com",
			"password": password,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "Bearer", body.TokenType)
		require.Positive(t, body.ExpiresIn)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, httpx.CookieName, cookies[0].Name)
		require.Equal(t, body.AccessToken, cookies[0].Value)
		require.True(t, cookies[0].HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		s := newTestServer(t)
		s.register(t, "ana@example.com", password)

		rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "ana@example.com",
			"password": "not the password 1",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_credentials")
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email": "not-an-email",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_request")
	})
}

func TestGateOnRoutes(t *testing.T) {
	t.Run("protected route without a token", func(t *testing.T) {
		s := newTestServer(t)

		rec := s.do(t, http.MethodGet, "/me", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "missing_credentials")
	})

	t.Run("bearer token reaches /me", func(t *testing.T) {
		s := newTestServer(t)
		userID := s.register(t, "ana@example.com", password)
		token := s.login(t, "ana@example.com", password)

		rec := s.do(t, http.MethodGet, "/me", nil, withBearer(token))
		require.Equal(t, http.StatusOK, rec.Code)

		var profile struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		require.Equal(t, userID, profile.ID)
		require.Equal(t, "ana@example.com", profile.Email)
	})

	t.Run("cookie token works the same", func(t *testing.T) {
		s := newTestServer(t)
		s.register(t, "ana@example.com", password)
		token := s.login(t, "ana@example.com", password)

		rec := s.do(t, http.MethodGet, "/me", nil, withCookie(token))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin route refuses a USER", func(t *testing.T) {
		s := newTestServer(t)
		s.register(t, "ana@example.com", password)
		token := s.login(t, "ana@example.com", password)

		rec := s.do(t, http.MethodGet, "/admin/users", nil, withBearer(token))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "insufficient_role")
	})

	t.Run("admin route serves an ADMIN", func(t *testing.T) {
		s := newTestServer(t)
		userID := s.register(t, "ana@example.com", password)
		require.NoError(t, s.dir.SetRole(context.Background(), userID, tokenx.RoleAdmin))
		token := s.login(t, "ana@example.com", password)

		rec := s.do(t, http.MethodGet, "/admin/users", nil, withBearer(token))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "ana@example.com")
	})

	t.Run("unverified cookie session is redirected", func(t *testing.T) {
		s := newTestServer(t)

		// Registered but never verified.
		rec := s.do(t, http.MethodPost, "/auth/register", map[string]string{
			"email":     "ana@example.com",
			"full_name": "Ana",
			"password":  password,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		token := s.login(t, "ana@example.com", password)

		rec = s.do(t, http.MethodGet, "/users/someone", nil, withCookie(token))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/verify-email", rec.Header().Get("Location"))

		// Same session over bearer gets a JSON 403 instead.
		rec = s.do(t, http.MethodGet, "/users/someone", nil, withBearer(token))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "email_unverified")

		// But /me is reachable while unverified.
		rec = s.do(t, http.MethodGet, "/me", nil, withBearer(token))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ana@example.com", password)
	token := s.login(t, "ana@example.com", password)

	rec := s.do(t, http.MethodPost, "/auth/logout", nil, withCookie(token))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge, "cookie must be cleared")

	// The revoked session no longer passes the gate.
	rec = s.do(t, http.MethodGet, "/me", nil, withBearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "revoked_token")
}

func TestTwoFactorEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ana@example.com", password)
	token := s.login(t, "ana@example.com", password)

	rec := s.do(t, http.MethodPost, "/auth/2fa/enroll", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var enrolled struct {
		Secret string `json:"secret"`
		URL    string `json:"otpauth_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrolled))
	require.NotEmpty(t, enrolled.Secret)
	require.NotEmpty(t, enrolled.URL)

	engine := totpx.NewEngine("Tramita")
	code, err := engine.Generate(enrolled.Secret)
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/auth/2fa/activate", map[string]string{"code": code}, withBearer(token))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Login now yields a challenge, and the verify endpoint finishes it.
	rec = s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var challenge struct {
		TwoFactorRequired bool   `json:"two_factor_required"`
		ChallengeToken    string `json:"challenge_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	require.True(t, challenge.TwoFactorRequired)

	code, err = engine.Generate(enrolled.Secret)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/auth/2fa/verify", map[string]string{
		"challenge_token": challenge.ChallengeToken,
		"code":            code,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "access_token")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)

	rec = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
