package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-media-core/internal/auth"
)

// healthCheckTimeout bounds the database probe behind /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/renderers", func(r chi.Router) {
			r.Get("/", s.handleListRenderers)
			r.Post("/identify", s.handleIdentify)
			r.Get("/whoami", s.handleWhoAmI)
			r.Post("/diagnose", s.handleDiagnose)
			r.Get("/overrides", s.handleListOverrides)
			r.Get("/sightings", s.handleListSightings)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.With(s.requirePermission(auth.PermPolicyManage)).Get("/policy", s.handleGetPolicy)
				r.With(s.requirePermission(auth.PermPolicyManage)).Put("/policy", s.handleUpdatePolicy)
				r.With(s.requirePermission(auth.PermProfileManage)).Post("/reload", s.handleReloadProfiles)

				r.Route("/custom", func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermProfileManage))
					r.Get("/", s.handleListCustomProfiles)
					r.Post("/", s.handleCreateCustomProfile)
					r.Delete("/{name}", s.handleDeleteCustomProfile)
				})
			})

			r.Get("/{name}", s.handleGetRenderer)
		})

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status. A failing database makes
// the server report itself degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
