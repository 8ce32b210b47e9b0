package server

import (
	"net/http"
)

type VideoControlRequest struct {
	Command string `json:"command"`
	TokenID string `json:"tokenId,omitempty"`
}

// handleVideoControl lets a GM station drive playback manually. The core
// only emits intents; the AV controller owns the device.
func handleVideoControl(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoControlRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "invalid request body")
			return
		}

		switch req.Command {
		case "play":
			tok, ok := deps.Catalog.Get(req.TokenID)
			if !ok {
				writeError(w, http.StatusNotFound, "INVALID_TOKEN", "unknown token "+req.TokenID)
				return
			}
			if tok.Video == "" {
				writeError(w, http.StatusBadRequest, "INVALID_DATA", "token has no video asset")
				return
			}
			if err := deps.Video.Play(r.Context(), tok.Video); err != nil {
				writeError(w, http.StatusBadGateway, "CONNECTION_ERROR", err.Error())
				return
			}
		case "stop":
			if err := deps.Video.Stop(r.Context()); err != nil {
				writeError(w, http.StatusBadGateway, "CONNECTION_ERROR", err.Error())
				return
			}
		default:
			writeError(w, http.StatusBadRequest, "INVALID_DATA", "command must be play or stop")
			return
		}

		deps.broadcastVideoStatus()
		status, current := deps.Video.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"video":  current,
		})
	}
}
