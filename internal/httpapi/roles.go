package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListRoles(w http.ResponseWriter, _ *http.Request) {
	roles := s.catalog.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"roles": roles,
		"count": len(roles),
	})
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	roleID := strings.TrimSpace(chi.URLParam(r, "roleID"))
	if roleID == "" {
		respondError(w, http.StatusBadRequest, "invalid_role_id", "missing role id")
		return
	}
	role, err := s.catalog.Resolve(roleID)
	if err != nil {
		respondError(w, http.StatusNotFound, "role_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, role)
}
