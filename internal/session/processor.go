package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

// ScanRequest is one raw scan event from a scanner or GM station.
type ScanRequest struct {
	TokenID   string        `json:"tokenId"`
	TeamID    string        `json:"teamId"`
	StationID string        `json:"stationId"`
	Mode      game.ScanMode `json:"mode"`
	Summary   string        `json:"summary,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

// ScanResult is the adjudicated outcome of one scan, plus the state delta the
// broadcaster fans out after a durable commit.
type ScanResult struct {
	SessionID       string           `json:"sessionId"`
	Transaction     game.Transaction `json:"transaction"`
	TeamScore       *game.TeamScore  `json:"teamScore,omitempty"`
	CompletedGroups []string         `json:"completedGroups,omitempty"`
	BonusPoints     int              `json:"bonusPoints,omitempty"`
	VideoAsset      string           `json:"-"`
	Committed       bool             `json:"-"`
}

// Processor validates and classifies scan events against the catalog and
// scoring tables, mutates the session through the Manager, and commits the
// result durably before it may be broadcast.
type Processor struct {
	manager *Manager
	catalog *token.Catalog
	logger  *slog.Logger

	cfgMu sync.RWMutex
	cfg   scoring.Config

	// onCommit runs under the manager lock immediately after a durable
	// write, so fan-out observes commits in commit order. Must not block.
	onCommit func(ScanResult)
}

// SetCommitHook installs the post-commit fan-out callback. Call before the
// processor starts receiving events.
func (p *Processor) SetCommitHook(fn func(ScanResult)) { p.onCommit = fn }

func NewProcessor(manager *Manager, catalog *token.Catalog, cfg scoring.Config, logger *slog.Logger) *Processor {
	return &Processor{
		manager: manager,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
	}
}

// Config returns the live scoring tables.
func (p *Processor) Config() scoring.Config {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// UpdateConfig swaps the scoring tables; subsequent scans use the new ones.
func (p *Processor) UpdateConfig(cfg scoring.Config) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

// Process runs one scan event to completion: adjudicate, append to the log,
// mutate team state, persist. Exactly one of these happens:
//
//   - a terminal Transaction (accepted/duplicate/rejected) is appended and
//     durably committed, or
//   - an error is returned and no state changed (malformed input, no active
//     session, paused session, failed durable write).
//
// The result is safe to broadcast iff Committed is true.
func (p *Processor) Process(ctx context.Context, req ScanRequest) (ScanResult, error) {
	if req.TokenID == "" || req.TeamID == "" || req.StationID == "" {
		return ScanResult{}, fmt.Errorf("%w: tokenId, teamId and stationId are required", game.ErrValidation)
	}
	switch req.Mode {
	case "":
		req.Mode = game.ModeBlackMarket
	case game.ModeBlackMarket, game.ModeDetective:
	default:
		return ScanResult{}, fmt.Errorf("%w: unknown scan mode %q", game.ErrValidation, req.Mode)
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	cfg := p.Config()

	m := p.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ScanResult{}, game.ErrNoSession
	}
	switch m.current.Status {
	case game.SessionPaused:
		return ScanResult{}, game.ErrSessionPaused
	case game.SessionActive:
	default:
		return ScanResult{}, game.ErrNoSession
	}

	tx := game.Transaction{
		ID:        uuid.NewString(),
		TokenID:   req.TokenID,
		TeamID:    req.TeamID,
		StationID: req.StationID,
		Mode:      req.Mode,
		Timestamp: req.Timestamp,
	}
	res := ScanResult{SessionID: m.current.ID}

	tok, known := p.catalog.Get(req.TokenID)
	switch {
	case !known:
		tx.Status = game.TransactionRejected
		tx.Reason = "unknown token"
		p.logger.Info("scan rejected", "token", req.TokenID, "team", req.TeamID, "reason", tx.Reason)

	case p.isDuplicate(req.TokenID):
		origID := m.acceptedTokens[req.TokenID]
		if !p.originalIsAccepted(origID) {
			// Orphaned duplicate chain. Surfaced loudly, never accepted.
			tx.Status = game.TransactionRejected
			tx.Reason = "orphaned duplicate"
			p.logger.Error("duplicate without accepted original",
				"token", req.TokenID, "original", origID, "err", game.ErrOrphanedDuplicate)
		} else {
			tx.Status = game.TransactionDuplicate
			tx.OriginalTransactionID = origID
		}

	case req.Mode == game.ModeDetective:
		tx.Status = game.TransactionAccepted
		tx.Summary = firstNonEmpty(req.Summary, tok.Summary)
		if tx.Summary == "" {
			// Data-quality finding, not a rejection.
			p.logger.Warn("detective scan without summary", "token", req.TokenID, "team", req.TeamID)
		}

	default: // new blackmarket scan
		points, err := cfg.TokenValue(tok, req.Mode)
		if err != nil {
			// Broken scoring config must not silently score zero; the event
			// is still recorded so the log reflects every submission.
			tx.Status = game.TransactionRejected
			tx.Reason = "scoring configuration missing"
			if cerr := p.appendAndCommit(ctx, &res, tx, nil); cerr != nil {
				p.rollbackAppend(tx, nil)
				return res, cerr
			}
			return res, err
		}
		tx.Status = game.TransactionAccepted
		tx.Points = points
	}

	var (
		team        *game.TeamScore
		restoreTeam func()
	)
	if tx.Status == game.TransactionAccepted {
		restoreTeam = p.snapshotTeam(tx.TeamID)
		team = p.applyAccepted(&res, tx)
	}

	if err := p.appendAndCommit(ctx, &res, tx, team); err != nil {
		p.rollbackAppend(tx, restoreTeam)
		return res, err
	}
	if tx.Status == game.TransactionAccepted && tx.Mode == game.ModeBlackMarket && tok.Video != "" {
		res.VideoAsset = tok.Video
	}
	return res, nil
}

func (p *Processor) isDuplicate(tokenID string) bool {
	_, ok := p.manager.acceptedTokens[tokenID]
	return ok
}

func (p *Processor) originalIsAccepted(txID string) bool {
	m := p.manager
	pos, ok := m.txByID[txID]
	if !ok || pos < 0 || pos >= len(m.current.Transactions) {
		return false
	}
	return m.current.Transactions[pos].Status == game.TransactionAccepted
}

// applyAccepted mutates team state for an accepted transaction and evaluates
// group bonuses for blackmarket scans. Caller holds the manager lock.
func (p *Processor) applyAccepted(res *ScanResult, tx game.Transaction) *game.TeamScore {
	m := p.manager
	team := m.current.Teams[tx.TeamID]
	if team == nil {
		team = &game.TeamScore{TeamID: tx.TeamID, CompletedGroups: []string{}}
		m.current.Teams[tx.TeamID] = team
	}
	team.TokensScanned++

	if tx.Mode != game.ModeBlackMarket {
		return team
	}

	team.BaseScore += tx.Points
	team.LastScanTime = tx.Timestamp

	scanned := m.teamScanned[tx.TeamID]
	if scanned == nil {
		scanned = make(map[string]struct{})
		m.teamScanned[tx.TeamID] = scanned
	}
	scanned[tx.TokenID] = struct{}{}

	cfg := p.Config()
	for _, entry := range p.catalog.Inventory().GroupsFor(tx.TokenID) {
		bonus, triggered, err := cfg.EvaluateGroupBonus(team, entry, scanned, p.catalog.Get)
		if err != nil {
			p.logger.Error("group bonus evaluation failed", "group", entry.Name, "error", err)
			continue
		}
		if !triggered {
			continue
		}
		team.BonusPoints += bonus
		team.CompletedGroups = append(team.CompletedGroups, entry.Name)
		res.CompletedGroups = append(res.CompletedGroups, entry.Name)
		res.BonusPoints += bonus
		p.logger.Info("group completed",
			"team", tx.TeamID, "group", entry.Name, "multiplier", entry.Multiplier, "bonus", bonus)
	}

	team.Score = team.BaseScore + team.BonusPoints
	return team
}

// appendAndCommit appends the transaction to the log, indexes it, and writes
// the session durably. On write failure the result stays uncommitted and no
// broadcast may follow. Caller holds the manager lock.
func (p *Processor) appendAndCommit(ctx context.Context, res *ScanResult, tx game.Transaction, team *game.TeamScore) error {
	m := p.manager
	m.current.Transactions = append(m.current.Transactions, tx)
	m.indexTransaction(len(m.current.Transactions)-1, tx)
	res.Transaction = tx
	if team != nil {
		cp := *team
		cp.CompletedGroups = append([]string(nil), team.CompletedGroups...)
		res.TeamScore = &cp
	}

	if err := m.gateway.SaveSession(ctx, m.current); err != nil {
		p.logger.Error("session commit failed", "session", m.current.ID, "tx", tx.ID, "error", err)
		return err
	}
	res.Committed = true
	if p.onCommit != nil {
		p.onCommit(*res)
	}
	return nil
}

// snapshotTeam captures the team's pre-scan state so a failed commit can put
// it back. Caller holds the manager lock.
func (p *Processor) snapshotTeam(teamID string) func() {
	m := p.manager
	prev, ok := m.current.Teams[teamID]
	if !ok {
		return func() { delete(m.current.Teams, teamID) }
	}
	cp := *prev
	cp.CompletedGroups = append([]string(nil), prev.CompletedGroups...)
	return func() { m.current.Teams[teamID] = &cp }
}

// rollbackAppend undoes the in-memory append after a failed durable write, so
// memory never runs ahead of storage. Caller holds the manager lock.
func (p *Processor) rollbackAppend(tx game.Transaction, restoreTeam func()) {
	m := p.manager
	m.current.Transactions = m.current.Transactions[:len(m.current.Transactions)-1]
	delete(m.txByID, tx.ID)
	if tx.Status == game.TransactionAccepted {
		delete(m.acceptedTokens, tx.TokenID)
		if set := m.teamScanned[tx.TeamID]; set != nil {
			delete(set, tx.TokenID)
		}
	}
	if restoreTeam != nil {
		restoreTeam()
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
