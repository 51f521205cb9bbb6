package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/tokenx"
)

// ProfileHandler covers the citizen-facing user reads.
type ProfileHandler struct {
	Directory *service.DirectoryService
}

// HandleMe handles GET /me.
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credentials", "no authenticated session")
		return
	}

	profile, err := h.Directory.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, profile)
}

// HandleGetUser handles GET /users/{id}. Citizens may only read their
// own record; admins may read anyone's.
func (h *ProfileHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "id")

	if targetID != httpx.UserIDFromContext(ctx) && httpx.RoleFromContext(ctx) != tokenx.RoleAdmin {
		httpx.WriteError(w, http.StatusForbidden, "insufficient_role", "you may only view your own record")
		return
	}

	profile, err := h.Directory.Profile(ctx, targetID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, profile)
}
