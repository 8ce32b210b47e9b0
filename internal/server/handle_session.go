package server

import (
	"net/http"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type UpdateSessionRequest struct {
	Status game.SessionStatus `json:"status"`
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Manager.Snapshot()
		if s == nil {
			writeDomainError(w, game.ErrNoSession)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if r.ContentLength > 0 {
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_DATA", "invalid request body")
				return
			}
		}

		s, err := deps.Manager.Create(r.Context(), req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		deps.Broker.Publish(roomStations, "session:update", s)
		writeJSON(w, http.StatusCreated, s)
	}
}

// handleUpdateSession drives the lifecycle: paused, active (resume), ended.
// Ending is terminal; it freezes the log and moves the session to archival
// storage.
func handleUpdateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "invalid request body")
			return
		}

		var (
			s   *game.Session
			err error
		)
		switch req.Status {
		case game.SessionPaused:
			s, err = deps.Manager.Pause(r.Context())
		case game.SessionActive:
			s, err = deps.Manager.Resume(r.Context())
		case game.SessionEnded:
			s, err = deps.Manager.End(r.Context())
		default:
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "status must be paused, active or ended")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		deps.Broker.Publish(roomStations, "session:update", s)
		writeJSON(w, http.StatusOK, s)
	}
}

func handleArchivedSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := deps.Gateway.GetArchivedSessions(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}
