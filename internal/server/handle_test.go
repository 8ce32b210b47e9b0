package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
	"github.com/maxepunk/aln-orchestrator/internal/session"
	"github.com/maxepunk/aln-orchestrator/internal/storage"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := storage.NewGateway(storage.NewMemory(), logger)
	catalog := token.New([]game.Token{
		{ID: "tok-a", ValueRating: 2, MemoryType: "Personal"},
		{ID: "tok-b", ValueRating: 5, MemoryType: "Personal", Group: "Files (x2)"},
		{ID: "tok-c", ValueRating: 1, MemoryType: "Business", Group: "Files (x2)"},
	}, logger)
	manager := session.NewManager(gateway, logger)

	return Deps{
		Logger:    logger,
		Manager:   manager,
		Processor: session.NewProcessor(manager, catalog, scoring.DefaultConfig(), logger),
		Gateway:   gateway,
		Catalog:   catalog,
		Registry:  NewRegistry(),
		Broker:    NewBroker(),
		Video:     NewVideoController("", logger),
	}
}

func testRouter(t *testing.T) (*chi.Mux, Deps) {
	t.Helper()
	deps := testDeps(t)
	r := chi.NewRouter()
	addRoutes(r, deps)
	return r, deps
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r, _ := testRouter(t)

	// No session yet. NO_SESSION carries the same status on every surface.
	w := doJSON(t, r, http.MethodGet, "/api/session", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var noSession ErrorResponse
	json.NewDecoder(w.Body).Decode(&noSession)
	if noSession.Code != "NO_SESSION" {
		t.Fatalf("expected NO_SESSION, got %q", noSession.Code)
	}

	// Create.
	w = doJSON(t, r, http.MethodPost, "/api/session", CreateSessionRequest{Name: "friday run"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var s game.Session
	json.NewDecoder(w.Body).Decode(&s)
	if s.Status != game.SessionActive || s.ID == "" {
		t.Fatalf("unexpected session: %+v", s)
	}

	// Creating while active is an operator error.
	w = doJSON(t, r, http.MethodPost, "/api/session", CreateSessionRequest{Name: "sneaky"})
	if w.Code != http.StatusConflict {
		t.Fatalf("second create: expected 409, got %d", w.Code)
	}
	var errResp ErrorResponse
	json.NewDecoder(w.Body).Decode(&errResp)
	if errResp.Code != "SESSION_ACTIVE" {
		t.Errorf("expected SESSION_ACTIVE, got %q", errResp.Code)
	}

	// Pause, resume, end.
	w = doJSON(t, r, http.MethodPut, "/api/session", UpdateSessionRequest{Status: game.SessionPaused})
	if w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPut, "/api/session", UpdateSessionRequest{Status: game.SessionActive})
	if w.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPut, "/api/session", UpdateSessionRequest{Status: game.SessionEnded})
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", w.Code)
	}
	json.NewDecoder(w.Body).Decode(&s)
	if s.Status != game.SessionArchived {
		t.Errorf("expected archived, got %s", s.Status)
	}

	// The archive has it.
	w = doJSON(t, r, http.MethodGet, "/api/sessions/archived", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archived: expected 200, got %d", w.Code)
	}
	var archived []game.Session
	json.NewDecoder(w.Body).Decode(&archived)
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived session, got %d", len(archived))
	}
}

func TestScanOverHTTP(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, http.MethodPost, "/api/session", nil)

	w := doJSON(t, r, http.MethodPost, "/api/scan", session.ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "scanner-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("scan: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res session.ScanResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Transaction.Status != game.TransactionAccepted || res.Transaction.Points != 500 {
		t.Fatalf("unexpected result: %+v", res.Transaction)
	}

	// Same token again, different team: duplicate.
	w = doJSON(t, r, http.MethodPost, "/api/scan", session.ScanRequest{
		TokenID: "tok-a", TeamID: "team-2", StationID: "scanner-2",
	})
	json.NewDecoder(w.Body).Decode(&res)
	if res.Transaction.Status != game.TransactionDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Transaction.Status)
	}

	// The state snapshot shows the score.
	w = doJSON(t, r, http.MethodGet, "/api/state", nil)
	var snap StateSnapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.Session == nil || snap.Session.Teams["team-1"].Score != 500 {
		t.Errorf("state snapshot missing team score: %+v", snap.Session)
	}
}

func TestScanWhilePausedOverHTTP(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, http.MethodPost, "/api/session", nil)
	doJSON(t, r, http.MethodPut, "/api/session", UpdateSessionRequest{Status: game.SessionPaused})

	w := doJSON(t, r, http.MethodPost, "/api/scan", session.ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "scanner-1",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var errResp ErrorResponse
	json.NewDecoder(w.Body).Decode(&errResp)
	if errResp.Code != "SESSION_PAUSED" {
		t.Errorf("expected SESSION_PAUSED, got %q", errResp.Code)
	}
}

func TestScanValidation(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, http.MethodPost, "/api/session", nil)

	w := doJSON(t, r, http.MethodPost, "/api/scan", session.ScanRequest{TeamID: "team-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var errResp ErrorResponse
	json.NewDecoder(w.Body).Decode(&errResp)
	if errResp.Code != "INVALID_DATA" {
		t.Errorf("expected INVALID_DATA, got %q", errResp.Code)
	}
}

func TestAdminConfigRoundTrip(t *testing.T) {
	r, deps := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/admin/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get config: expected 200, got %d", w.Code)
	}
	var cfg scoring.Config
	json.NewDecoder(w.Body).Decode(&cfg)
	if cfg.BaseValues[5] != 20000 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}

	// A config that does not cover the catalog is refused.
	bad := scoring.Config{
		BaseValues:      map[int]int{1: 100},
		TypeMultipliers: map[string]int{"Personal": 1},
	}
	w = doJSON(t, r, http.MethodPut, "/api/admin/config", bad)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("bad config: expected 500, got %d", w.Code)
	}

	// A covering config is accepted and applied.
	cfg.BaseValues[5] = 50000
	w = doJSON(t, r, http.MethodPut, "/api/admin/config", cfg)
	if w.Code != http.StatusOK {
		t.Fatalf("put config: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if deps.Processor.Config().BaseValues[5] != 50000 {
		t.Error("processor config not updated")
	}
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
