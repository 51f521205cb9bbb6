package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tramita/portal/pkg/tokenx"
)

// CookieName is the session cookie set by the browser login flow. API
// clients send the same token as a bearer header instead.
const CookieName = "auth_token"

// SessionTokens is the slice of the token service the gate depends on.
type SessionTokens interface {
	Verify(ctx context.Context, raw string) (tokenx.Claims, error)
	Refresh(ctx context.Context, raw string) (string, time.Time, error)
}

// GateConfig declares which paths get which treatment. A path matches a
// rule when it equals the rule or sits underneath it ("/admin" covers
// "/admin/users" but not "/administrivia").
type GateConfig struct {
	// Public paths pass through without credentials. A path that is both
	// public and admin is treated as admin.
	Public []string

	// Unverified paths stay reachable before email verification
	// (the verification flow itself, logout, the profile page).
	Unverified []string

	// Admin paths additionally require the ADMIN role.
	Admin []string

	// VerifyEmailPath is where unverified browser sessions get redirected.
	VerifyEmailPath string

	// RefreshThreshold is the remaining lifetime below which a valid
	// token is transparently replaced. Zero means the 1 hour default.
	RefreshThreshold time.Duration

	// CookieMaxAge bounds refreshed session cookies. Zero means the
	// token service's 24 hour default.
	CookieMaxAge time.Duration

	// CookieSecure should only be false in local development.
	CookieSecure bool
}

// Gate is the portal's authentication middleware. Each request walks an
// ordered pipeline: classify the path, extract credentials, verify them,
// gate on email verification, gate on role, then refresh near-expiry
// tokens and attach the identity. Every rejection short-circuits before
// the refresh step, so a rejected request never mints a token.
type Gate struct {
	Tokens SessionTokens
	Config GateConfig

	// Clock is overridable for tests. Nil means time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

func NewGate(tokens SessionTokens, cfg GateConfig) *Gate {
	return &Gate{Tokens: tokens, Config: cfg}
}

func (g *Gate) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *Gate) log() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *Gate) refreshThreshold() time.Duration {
	if g.Config.RefreshThreshold > 0 {
		return g.Config.RefreshThreshold
	}
	return tokenx.DefaultRefreshThreshold
}

func (g *Gate) cookieMaxAge() time.Duration {
	if g.Config.CookieMaxAge > 0 {
		return g.Config.CookieMaxAge
	}
	return tokenx.DefaultLifetime
}

type routeClass struct {
	public     bool
	admin      bool
	unverified bool
}

// classify consults every rule list; a path can hold several
// classifications at once, and admin beats public on conflict.
func (g *Gate) classify(path string) routeClass {
	return routeClass{
		public:     matchAny(g.Config.Public, path),
		admin:      matchAny(g.Config.Admin, path),
		unverified: matchAny(g.Config.Unverified, path),
	}
}

// rejection is a pipeline verdict. A nil rejection means carry on.
type rejection struct {
	status      int
	code        string
	description string
	redirect    string
	clearCookie bool
}

// Middleware returns the gate as a chainable handler wrapper.
func (g *Gate) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := g.classify(r.URL.Path)
			if class.public && !class.admin {
				next.ServeHTTP(w, r)
				return
			}

			raw, fromCookie, rej := g.extract(r)
			if rej == nil {
				var claims tokenx.Claims
				claims, rej = g.verify(r.Context(), raw, fromCookie)
				if rej == nil {
					rej = g.gateEmail(claims, class, fromCookie)
				}
				if rej == nil {
					rej = g.gateRole(claims, class)
				}
				if rej == nil {
					g.maybeRefresh(w, r, raw, claims, fromCookie)
					g.serve(next, w, r, claims)
					return
				}
			}
			g.reject(w, r, rej)
		})
	}
}

// extract pulls the session token, cookie first, bearer header second.
func (g *Gate) extract(r *http.Request) (raw string, fromCookie bool, rej *rejection) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true, nil
	}

	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		if token := strings.TrimSpace(auth[7:]); token != "" {
			return token, false, nil
		}
	}

	return "", false, &rejection{
		status:      http.StatusUnauthorized,
		code:        "missing_credentials",
		description: "no session cookie or bearer token",
	}
}

func (g *Gate) verify(ctx context.Context, raw string, fromCookie bool) (tokenx.Claims, *rejection) {
	claims, err := g.Tokens.Verify(ctx, raw)
	if err == nil {
		return claims, nil
	}

	rej := &rejection{status: http.StatusUnauthorized, clearCookie: fromCookie}
	switch {
	case errors.Is(err, tokenx.ErrExpiredToken):
		rej.code = "expired_token"
		rej.description = "session has expired"
	case errors.Is(err, tokenx.ErrRevokedToken):
		rej.code = "revoked_token"
		rej.description = "session has been revoked"
	default:
		rej.code = "invalid_token"
		rej.description = "session token is not valid"
	}
	return tokenx.Claims{}, rej
}

// gateEmail blocks unverified accounts everywhere the unverified list
// does not explicitly allow. Browser sessions get bounced to the
// verification page; API clients get a plain 403.
func (g *Gate) gateEmail(claims tokenx.Claims, class routeClass, fromCookie bool) *rejection {
	if claims.EmailVerified || class.unverified {
		return nil
	}
	if fromCookie && g.Config.VerifyEmailPath != "" {
		return &rejection{status: http.StatusSeeOther, redirect: g.Config.VerifyEmailPath}
	}
	return &rejection{
		status:      http.StatusForbidden,
		code:        "email_unverified",
		description: "verify your email address to continue",
	}
}

func (g *Gate) gateRole(claims tokenx.Claims, class routeClass) *rejection {
	if !class.admin || claims.Role == tokenx.RoleAdmin {
		return nil
	}
	return &rejection{
		status:      http.StatusForbidden,
		code:        "insufficient_role",
		description: "administrator access required",
	}
}

// maybeRefresh swaps a near-expiry token for a fresh one. Refresh
// failures are logged and swallowed: the request already passed every
// check and must not fail on a courtesy.
func (g *Gate) maybeRefresh(w http.ResponseWriter, r *http.Request, raw string, claims tokenx.Claims, fromCookie bool) {
	if claims.ExpiresIn(g.now()) >= g.refreshThreshold() {
		return
	}

	fresh, _, err := g.Tokens.Refresh(r.Context(), raw)
	if err != nil {
		g.log().Warn("session refresh failed", "subject", claims.Subject, "err", err)
		return
	}

	if fromCookie {
		http.SetCookie(w, SessionCookie(fresh, g.cookieMaxAge(), g.Config.CookieSecure))
	} else {
		w.Header().Set("X-Refreshed-Token", fresh)
	}
}

func (g *Gate) serve(next http.Handler, w http.ResponseWriter, r *http.Request, claims tokenx.Claims) {
	r = r.WithContext(WithIdentity(r.Context(), claims))
	r.Header.Set("X-User-Id", claims.Subject)
	r.Header.Set("X-User-Role", string(claims.Role))
	next.ServeHTTP(w, r)
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, rej *rejection) {
	if rej.clearCookie {
		http.SetCookie(w, ExpiredSessionCookie(g.Config.CookieSecure))
	}
	if rej.redirect != "" {
		http.Redirect(w, r, rej.redirect, rej.status)
		return
	}
	NoCache(w)
	WriteError(w, rej.status, rej.code, rej.description)
}

// SessionCookie builds the portal session cookie. Login and the gate's
// refresh step must agree on these attributes, so both call this.
func SessionCookie(token string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredSessionCookie tells the browser to drop the session cookie.
func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// matchAny reports whether path equals a rule or lives underneath one.
func matchAny(rules []string, path string) bool {
	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if path == rule || strings.HasPrefix(path, strings.TrimSuffix(rule, "/")+"/") {
			return true
		}
	}
	return false
}
