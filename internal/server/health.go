package server

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Storage: "ok"}
		status := http.StatusOK

		if _, err := deps.Gateway.Backend().Size(ctx); err != nil {
			deps.Logger.Error("health check failed", "name", "storage", "error", err)
			resp.Status = "error"
			resp.Storage = "error"
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, resp)
	}
}
