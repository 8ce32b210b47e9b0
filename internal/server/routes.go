package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, deps Deps) {
	deps.wireCommitFanout()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("ALN Orchestrator API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(deps))

	// Station protocol: scanners and GM stations hold this socket.
	r.Get("/ws", handleStation(deps))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", handleScan(deps))
		r.Get("/state", handleState(deps))
		r.Get("/devices", handleDevices(deps))

		r.Get("/session", handleGetSession(deps))
		r.Post("/session", handleCreateSession(deps))
		r.Put("/session", handleUpdateSession(deps))
		r.Get("/sessions/archived", handleArchivedSessions(deps))

		r.Get("/admin/config", handleGetAdminConfig(deps))
		r.Put("/admin/config", handleUpdateAdminConfig(deps))

		r.Post("/video/control", handleVideoControl(deps))
	})
}
