package server

import (
	"net/http"

	"github.com/maxepunk/aln-orchestrator/internal/session"
)

// handleScan is the HTTP submission path for scanners without a persistent
// socket. The adjudicated transaction comes back in the response; connected
// stations see it as a transaction:new broadcast.
func handleScan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req session.ScanRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "invalid request body")
			return
		}

		res, err := deps.submitScan(r.Context(), req)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
