package http

import (
	"net/http"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
)

// TwoFactorHandler covers TOTP enrolment for the logged-in citizen.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService
}

type activateRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// HandleEnroll handles POST /auth/2fa/enroll. Returns the secret and
// otpauth URL exactly once; after activation they are gone.
func (h *TwoFactorHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credentials", "no authenticated session")
		return
	}

	resp, err := h.TwoFactor.Enroll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleActivate handles POST /auth/2fa/activate.
func (h *TwoFactorHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credentials", "no authenticated session")
		return
	}

	var req activateRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.TwoFactor.Activate(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles POST /auth/2fa/disable. A current code is
// required, not just a session.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credentials", "no authenticated session")
		return
	}

	var req activateRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.TwoFactor.Disable(r.Context(), userID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
