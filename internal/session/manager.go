// Package session owns the canonical in-memory session state. The Manager is
// its exclusive mutator; every read crossing the package boundary is a deep
// copy, so no other component ever holds a live reference.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/storage"
)

// Manager drives the session lifecycle:
//
//	active ⇄ paused → ended → archived
//
// Exactly one session may be active at a time; creating a new one requires
// the operator to end the prior session first.
type Manager struct {
	mu      sync.Mutex
	logger  *slog.Logger
	gateway *storage.Gateway

	current *game.Session

	// Adjudication indexes, rebuilt from the transaction log on restore.
	acceptedTokens map[string]string              // token id -> accepted transaction id
	txByID         map[string]int                 // transaction id -> log position
	teamScanned    map[string]map[string]struct{} // team id -> accepted blackmarket token ids
}

func NewManager(gateway *storage.Gateway, logger *slog.Logger) *Manager {
	m := &Manager{
		logger:  logger,
		gateway: gateway,
	}
	m.resetIndexes()
	return m
}

func (m *Manager) resetIndexes() {
	m.acceptedTokens = make(map[string]string)
	m.txByID = make(map[string]int)
	m.teamScanned = make(map[string]map[string]struct{})
}

// Restore adopts a previously persisted active or paused session after a
// process restart and rebuilds the adjudication indexes from its log.
func (m *Manager) Restore(ctx context.Context) error {
	sessions, err := m.gateway.GetAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s.Status != game.SessionActive && s.Status != game.SessionPaused {
			continue
		}
		m.current = s
		m.resetIndexes()
		for i, tx := range s.Transactions {
			m.indexTransaction(i, tx)
		}
		m.logger.Info("restored session",
			"session", s.ID,
			"status", s.Status,
			"transactions", len(s.Transactions),
			"teams", len(s.Teams),
		)
		return nil
	}
	return nil
}

func (m *Manager) indexTransaction(pos int, tx game.Transaction) {
	m.txByID[tx.ID] = pos
	if tx.Status != game.TransactionAccepted {
		return
	}
	m.acceptedTokens[tx.TokenID] = tx.ID
	if tx.Mode == game.ModeBlackMarket {
		set := m.teamScanned[tx.TeamID]
		if set == nil {
			set = make(map[string]struct{})
			m.teamScanned[tx.TeamID] = set
		}
		set[tx.TokenID] = struct{}{}
	}
}

// Create starts a new session. Fails with ErrSessionActive while a prior
// session has not been ended; ending is an explicit operator action.
func (m *Manager) Create(ctx context.Context, name string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, fmt.Errorf("%w: %s", game.ErrSessionActive, m.current.ID)
	}

	s := &game.Session{
		ID:           uuid.NewString(),
		Name:         name,
		StartTime:    time.Now().UTC(),
		Status:       game.SessionActive,
		Transactions: []game.Transaction{},
		Teams:        make(map[string]*game.TeamScore),
	}
	if err := m.gateway.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	m.current = s
	m.resetIndexes()
	m.logger.Info("session created", "session", s.ID, "name", name)
	return cloneSession(s), nil
}

// Pause suspends acceptance of new scans without losing any state.
func (m *Manager) Pause(ctx context.Context) (*game.Session, error) {
	return m.transition(ctx, game.SessionActive, game.SessionPaused)
}

// Resume re-opens a paused session for scans.
func (m *Manager) Resume(ctx context.Context) (*game.Session, error) {
	return m.transition(ctx, game.SessionPaused, game.SessionActive)
}

func (m *Manager) transition(ctx context.Context, from, to game.SessionStatus) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, game.ErrNoSession
	}
	if m.current.Status != from {
		return nil, fmt.Errorf("%w: session is %s, not %s", game.ErrValidation, m.current.Status, from)
	}
	m.current.Status = to
	if err := m.gateway.SaveSession(ctx, m.current); err != nil {
		m.current.Status = from
		return nil, err
	}
	m.logger.Info("session status changed", "session", m.current.ID, "status", to)
	return cloneSession(m.current), nil
}

// End freezes the session, takes a final backup, and moves it to archival
// storage. The active-session slot is cleared atomically with the archive
// write. Terminal and non-reversible.
func (m *Manager) End(ctx context.Context) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, game.ErrNoSession
	}
	s := m.current
	now := time.Now().UTC()
	s.Status = game.SessionEnded
	s.EndTime = &now
	if err := m.gateway.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	if _, err := m.gateway.BackupSession(ctx, s); err != nil {
		m.logger.Error("final session backup failed", "session", s.ID, "error", err)
	}
	s.Status = game.SessionArchived
	if err := m.gateway.ArchiveSession(ctx, s); err != nil {
		return nil, err
	}
	m.current = nil
	m.resetIndexes()
	m.logger.Info("session ended and archived", "session", s.ID, "transactions", len(s.Transactions))
	return cloneSession(s), nil
}

// Snapshot returns a deep copy of the current session, or nil when none.
func (m *Manager) Snapshot() *game.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return cloneSession(m.current)
}

// CurrentID returns the active session's id, or "" when none.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// Backup snapshots the current session to a dated backup key.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", game.ErrNoSession
	}
	return m.gateway.BackupSession(ctx, m.current)
}

// PersistGameState writes the scores + video status snapshot.
func (m *Manager) PersistGameState(ctx context.Context, video game.VideoStatus) error {
	m.mu.Lock()
	st := &game.GameState{
		Scores:      make(map[string]*game.TeamScore),
		VideoStatus: video,
		UpdatedAt:   time.Now().UTC(),
	}
	if m.current != nil {
		st.SessionID = m.current.ID
		for id, t := range m.current.Teams {
			cp := *t
			cp.CompletedGroups = append([]string(nil), t.CompletedGroups...)
			st.Scores[id] = &cp
		}
	}
	m.mu.Unlock()
	return m.gateway.SaveGameState(ctx, st)
}

// cloneSession deep-copies through JSON, the same representation the gateway
// persists, so copies are exactly what an observer would read back.
func cloneSession(s *game.Session) *game.Session {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("session not serializable: %v", err))
	}
	var out game.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("session not round-trippable: %v", err))
	}
	return &out
}
