package server

import (
	"net/http"

	"github.com/maxepunk/aln-orchestrator/internal/scoring"
)

func handleGetAdminConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Processor.Config())
	}
}

// handleUpdateAdminConfig swaps the scoring tables. The new tables must cover
// the whole catalog, otherwise mid-event drift would start rejecting scans.
func handleUpdateAdminConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg scoring.Config
		if err := readJSON(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "invalid request body")
			return
		}
		if err := cfg.Validate(deps.Catalog.All()); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := deps.Gateway.SaveAdminConfig(r.Context(), cfg); err != nil {
			writeDomainError(w, err)
			return
		}
		deps.Processor.UpdateConfig(cfg)
		deps.Logger.Info("scoring config updated")
		writeJSON(w, http.StatusOK, cfg)
	}
}
