package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
)

// AdminHandler covers the /admin surface. The gate has already enforced
// the ADMIN role by the time any of these run.
type AdminHandler struct {
	Directory *service.DirectoryService
	Limiter   *limitx.Limiter
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

type limitResetRequest struct {
	Key    string `json:"key" validate:"required"`
	Action string `json:"action" validate:"required"`
}

// HandleListUsers handles GET /admin/users.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Directory.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": profiles})
}

// HandleSetRole handles PUT /admin/users/{id}/role.
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if !decode(w, r, &req) {
		return
	}

	targetID := chi.URLParam(r, "id")
	if err := h.Directory.SetRole(r.Context(), targetID, tokenx.Role(req.Role)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLimitReset handles POST /admin/rate-limits/reset, the manual
// override for a citizen locked out at the town hall counter.
func (h *AdminHandler) HandleLimitReset(w http.ResponseWriter, r *http.Request) {
	var req limitResetRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Limiter.Reset(r.Context(), req.Key, req.Action); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("rate limit reset",
		"admin", httpx.UserIDFromContext(r.Context()),
		"key", req.Key,
		"action", req.Action,
	)
	w.WriteHeader(http.StatusNoContent)
}
