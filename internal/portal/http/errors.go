package http

import (
	"errors"
	"net/http"

	"github.com/tramita/portal/internal/portal/domain"
	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
)

// writeServiceError maps service and domain errors onto the wire
// taxonomy. Anything unmapped is a 500 and gets logged; mapped errors
// are the caller's problem and only logged at the service layer.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.NoCache(w)

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")

	case errors.Is(err, domain.ErrChallengeNotFound):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_challenge", "challenge token is not valid")
	case errors.Is(err, domain.ErrChallengeExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "challenge_expired", "challenge has expired, log in again")
	case errors.Is(err, domain.ErrChallengeConsumed):
		httpx.WriteError(w, http.StatusUnauthorized, "challenge_consumed", "challenge has already been used")
	case errors.Is(err, domain.ErrChallengeExhausted):
		httpx.WriteError(w, http.StatusUnauthorized, "challenge_exhausted", "too many wrong codes, log in again")
	case errors.Is(err, domain.ErrCodeMismatch):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "code is incorrect")

	case errors.Is(err, domain.ErrTwoFactorEnabled):
		httpx.WriteError(w, http.StatusConflict, "two_factor_enabled", "two-factor is already active")
	case errors.Is(err, domain.ErrTwoFactorPending):
		httpx.WriteError(w, http.StatusConflict, "two_factor_not_pending", "no enrolment to act on")

	case errors.Is(err, domain.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, "email_taken", "email is already registered")
	case errors.Is(err, domain.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, "weak_password", "password does not meet the minimum requirements")
	case errors.Is(err, domain.ErrResetTokenInvalid):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_reset_token", "reset link is invalid or expired")
	case errors.Is(err, domain.ErrVerifyTokenInvalid):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_verification_token", "verification link is invalid or expired")

	case errors.Is(err, domain.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user_not_found", "no such user")
	case errors.Is(err, service.ErrUnknownRole):
		httpx.WriteError(w, http.StatusBadRequest, "unknown_role", "role must be USER or ADMIN")

	case errors.Is(err, tokenx.ErrExpiredToken):
		httpx.WriteError(w, http.StatusUnauthorized, "expired_token", "session has expired")
	case errors.Is(err, tokenx.ErrRevokedToken):
		httpx.WriteError(w, http.StatusUnauthorized, "revoked_token", "session has been revoked")
	case errors.Is(err, tokenx.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "session token is not valid")

	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "something went wrong")
	}
}
