package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

// ErrorResponse is the protocol error shape shared by HTTP and WebSocket.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// writeDomainError maps the error taxonomy to a protocol code and HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	writeError(w, status, code, err.Error())
}

func errorCode(err error) (code string, httpStatus int) {
	switch {
	case errors.Is(err, game.ErrValidation):
		return "INVALID_DATA", http.StatusBadRequest
	case errors.Is(err, game.ErrNoSession):
		return "NO_SESSION", http.StatusConflict
	case errors.Is(err, game.ErrSessionPaused):
		return "SESSION_PAUSED", http.StatusConflict
	case errors.Is(err, game.ErrSessionActive):
		return "SESSION_ACTIVE", http.StatusConflict
	case errors.Is(err, game.ErrInvalidToken):
		return "INVALID_TOKEN", http.StatusNotFound
	case errors.Is(err, game.ErrConfiguration):
		return "CONFIG_ERROR", http.StatusInternalServerError
	case errors.Is(err, game.ErrPersistence):
		return "PERSISTENCE_ERROR", http.StatusInternalServerError
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}
