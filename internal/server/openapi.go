package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
	"github.com/maxepunk/aln-orchestrator/internal/session"
)

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "ALN Orchestrator API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Central authority for live scavenger events: scan adjudication, session lifecycle, station sync.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the storage backend.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Station socket")
	getWS.SetDescription("Upgrades to the station WebSocket protocol: identify, scan, heartbeat, broadcast sync.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/scan
	postScan, _ := r.NewOperationContext(http.MethodPost, "/api/scan")
	postScan.SetSummary("Submit a scan")
	postScan.SetDescription("Adjudicates one token scan: accepted, duplicate or rejected. The result is broadcast to all stations.")
	postScan.AddReqStructure(session.ScanRequest{})
	postScan.AddRespStructure(session.ScanResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postScan)

	// GET /api/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/state")
	getState.SetSummary("Full state snapshot")
	getState.SetDescription("Returns the session, device list and video status as one consistent view.")
	getState.AddRespStructure(StateSnapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getState)

	// GET /api/devices
	getDevices, _ := r.NewOperationContext(http.MethodGet, "/api/devices")
	getDevices.SetSummary("List devices")
	getDevices.AddRespStructure([]game.Device{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getDevices)

	// GET /api/session
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/session")
	getSession.SetSummary("Current session")
	getSession.AddRespStructure(game.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getSession)

	// POST /api/session
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/session")
	postSession.SetSummary("Create a session")
	postSession.SetDescription("Starts a new session. Fails while a prior session is still active.")
	postSession.AddReqStructure(CreateSessionRequest{})
	postSession.AddRespStructure(game.Session{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postSession)

	// PUT /api/session
	putSession, _ := r.NewOperationContext(http.MethodPut, "/api/session")
	putSession.SetSummary("Change session status")
	putSession.SetDescription("Pause, resume or end the current session. Ending archives it, terminally.")
	putSession.AddReqStructure(UpdateSessionRequest{})
	putSession.AddRespStructure(game.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	putSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(putSession)

	// GET /api/sessions/archived
	getArchived, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/archived")
	getArchived.SetSummary("List archived sessions")
	getArchived.AddRespStructure([]game.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getArchived)

	// GET /api/admin/config
	getConfig, _ := r.NewOperationContext(http.MethodGet, "/api/admin/config")
	getConfig.SetSummary("Scoring tables")
	getConfig.AddRespStructure(scoring.Config{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getConfig)

	// PUT /api/admin/config
	putConfig, _ := r.NewOperationContext(http.MethodPut, "/api/admin/config")
	putConfig.SetSummary("Replace scoring tables")
	putConfig.SetDescription("The new tables must cover every token in the catalog.")
	putConfig.AddReqStructure(scoring.Config{})
	putConfig.AddRespStructure(scoring.Config{}, openapi.WithHTTPStatus(http.StatusOK))
	putConfig.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(putConfig)

	// POST /api/video/control
	postVideo, _ := r.NewOperationContext(http.MethodPost, "/api/video/control")
	postVideo.SetSummary("Video playback intent")
	postVideo.SetDescription("Relays a play/stop intent to the external AV controller.")
	postVideo.AddReqStructure(VideoControlRequest{})
	postVideo.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postVideo.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postVideo)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
