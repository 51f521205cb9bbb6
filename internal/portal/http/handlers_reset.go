package http

import (
	"net/http"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
)

// ResetHandler covers the forgot-password flow.
type ResetHandler struct {
	Reset *service.ResetService
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetApplyRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// HandleRequest handles POST /auth/reset-password. Always 202 for a
// well-formed email, registered or not.
func (h *ResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Reset.Request(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "if the email is registered, a reset link is on its way",
	})
}

// HandleApply handles POST /auth/reset-password/apply.
func (h *ResetHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req resetApplyRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Reset.Apply(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
