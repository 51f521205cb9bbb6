package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/slogx"
)

// AuthHandler covers login, the two-factor step, and logout.
type AuthHandler struct {
	Auth *service.AuthService

	CookieMaxAge time.Duration
	CookieSecure bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleLogin handles POST /auth/login. A plain account gets a session
// straight away; a two-factor account gets a challenge token instead.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	if result.Challenge != nil {
		httpx.WriteJSON(w, http.StatusOK, result.Challenge)
		return
	}
	h.writeSession(w, result.Token, result.ExpiresAt)
}

// HandleVerify handles POST /auth/2fa/verify, completing a pending
// challenge.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}

	token, expiresAt, err := h.Auth.VerifyChallenge(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	h.writeSession(w, token, expiresAt)
}

// HandleLogout handles POST /auth/logout. The cookie is cleared even
// when the token itself no longer verifies; the client's intent is
// unambiguous.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	raw := sessionToken(r)
	http.SetCookie(w, httpx.ExpiredSessionCookie(h.CookieSecure))

	if raw == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.Auth.Logout(r.Context(), raw); err != nil {
		slogx.FromContext(r.Context()).Info("logout with unusable token", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSession sets the browser cookie and returns the bearer form in
// the body, so one endpoint serves both kinds of client.
func (h *AuthHandler) writeSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, httpx.SessionCookie(token, h.CookieMaxAge, h.CookieSecure))
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt) / time.Second),
	})
}

// sessionToken mirrors the gate's extraction order: cookie, then bearer.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(httpx.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
