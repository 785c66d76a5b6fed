package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// endpoints is the list served at /.
var endpoints = []string{
	"GET  /api/v1/health",
	"GET  /api/v1/state",
	"POST /api/v1/device/power  {name, on}",
	"POST /api/v1/blind/set     {name, value}",
	"POST /api/v1/scene/run     {name}",
	"GET  /api/v1/resolve?q=&kind=",
	"GET  /api/v1/history?q=&since=&limit=",
	"GET  /api/v1/audit",
	"GET  /api/v1/metrics",
	"GET  /api/v1/ws",
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleIndex)

	// Root mounts for voice-assistant clients that post without a prefix.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		s.mountCommands(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			s.mountCommands(r)
			r.Get("/state", s.handleGetState)
			r.Get("/resolve", s.handleResolve)
			r.Get("/history", s.handleDeviceHistory)
			r.Get("/audit", s.handleListAuditLogs)
			r.Get("/metrics", s.handleMetrics)
			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

func (s *Server) mountCommands(r chi.Router) {
	r.Post("/device/power", s.handleDevicePower)
	r.Post("/blind/set", s.handleBlindSet)
	r.Post("/scene/run", s.handleSceneRun)
}

// handleIndex reports the bridge is up and lists its endpoints.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "bridge running",
		"version":   s.version,
		"endpoints": endpoints,
	})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
