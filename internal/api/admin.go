package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/gray-media-core/internal/identify"
	"github.com/nerrad567/gray-media-core/internal/renderer"
)

// handleGetPolicy returns the active identification policy.
func (s *Server) handleGetPolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.identify.PolicyState())
}

// handleUpdatePolicy applies a partial policy change. Omitted fields keep
// their value; an empty force_ip clears the overrides.
func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var update identify.PolicyUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state, err := s.identify.UpdatePolicy(r.Context(), update)
	if errors.Is(err, identify.ErrEmptyPolicyUpdate) {
		writeBadRequest(w, "at least one of default_renderer, force_default, force_ip is required")
		return
	}
	if err != nil {
		s.logger.Error("updating renderer policy failed", "error", err)
		writeInternalError(w, "failed to update policy")
		return
	}

	s.logger.Info("renderer policy updated via API",
		"subject", subjectOf(r),
		"default", state.DefaultRenderer,
		"force_default", state.ForceDefault,
		"dropped", state.Overrides.Dropped,
	)
	writeJSON(w, http.StatusOK, state)
}

// handleReloadProfiles rereads every definition source.
func (s *Server) handleReloadProfiles(w http.ResponseWriter, r *http.Request) {
	state, err := s.identify.ReloadProfiles(r.Context())
	if err != nil {
		s.logger.Error("reloading renderer profiles failed", "error", err)
		writeInternalError(w, "failed to reload profiles: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleListCustomProfiles returns the profiles created through the API.
func (s *Server) handleListCustomProfiles(w http.ResponseWriter, r *http.Request) {
	defs, err := s.identify.ListCustomProfiles(r.Context())
	if err != nil {
		s.writeCustomProfileError(w, err, "failed to list custom profiles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": defs,
		"count":    len(defs),
	})
}

// handleCreateCustomProfile stores a new profile and reloads the registry.
func (s *Server) handleCreateCustomProfile(w http.ResponseWriter, r *http.Request) {
	var def renderer.Definition
	if err := decodeJSON(r, &def); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	def.Source = ""

	if err := s.identify.CreateCustomProfile(r.Context(), def); err != nil {
		s.writeCustomProfileError(w, err, "failed to create custom profile")
		return
	}

	p, ok := s.identify.Resolver().Registry().FindByName(def.Name)
	if !ok {
		s.logger.Error("custom profile missing after reload", "name", def.Name)
		writeInternalError(w, "custom profile was not loaded")
		return
	}
	s.logger.Info("custom renderer profile created", "name", p.Name(), "subject", subjectOf(r))
	writeJSON(w, http.StatusCreated, rendererResponse{Definition: p.Definition(), Index: p.Index()})
}

// handleDeleteCustomProfile removes a stored profile and reloads the registry.
func (s *Server) handleDeleteCustomProfile(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	if err := s.identify.DeleteCustomProfile(r.Context(), name); err != nil {
		s.writeCustomProfileError(w, err, "failed to delete custom profile")
		return
	}
	s.logger.Info("custom renderer profile deleted", "name", name, "subject", subjectOf(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeCustomProfileError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, identify.ErrCustomProfilesUnavailable):
		writeUnavailable(w, "custom profiles are unavailable")
	case errors.Is(err, renderer.ErrProfileNotFound):
		writeNotFound(w, "custom profile not found")
	case errors.Is(err, renderer.ErrDuplicateProfile):
		writeConflict(w, err.Error())
	case errors.Is(err, renderer.ErrInvalidProfile), errors.Is(err, renderer.ErrInvalidPattern):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error(message, "error", err)
		writeInternalError(w, message)
	}
}

func subjectOf(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
