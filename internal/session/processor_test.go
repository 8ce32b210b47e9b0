package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
	"github.com/maxepunk/aln-orchestrator/internal/storage"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

// Catalog per the stock tables: A is worth 500, B 20000, C 300; B and C
// together complete the "files" group at x2.
func testCatalog(logger *slog.Logger) *token.Catalog {
	return token.New([]game.Token{
		{ID: "tok-a", ValueRating: 2, MemoryType: "Personal"},
		{ID: "tok-b", ValueRating: 5, MemoryType: "Personal", Group: "Files (x2)"},
		{ID: "tok-c", ValueRating: 1, MemoryType: "Business", Group: "Files (x2)"},
		{ID: "tok-v", ValueRating: 1, MemoryType: "Personal", Video: "assets/v.mp4"},
	}, logger)
}

func setup(t *testing.T) (*Manager, *Processor, *storage.Gateway) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := storage.NewGateway(storage.NewMemory(), logger)
	manager := NewManager(gateway, logger)
	processor := NewProcessor(manager, testCatalog(logger), scoring.DefaultConfig(), logger)
	return manager, processor, gateway
}

func activeSession(t *testing.T, m *Manager) *game.Session {
	t.Helper()
	s, err := m.Create(context.Background(), "test event")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func scan(t *testing.T, p *Processor, tokenID, teamID string, mode game.ScanMode) ScanResult {
	t.Helper()
	res, err := p.Process(context.Background(), ScanRequest{
		TokenID:   tokenID,
		TeamID:    teamID,
		StationID: "station-1",
		Mode:      mode,
	})
	if err != nil {
		t.Fatalf("scan %s for %s: %v", tokenID, teamID, err)
	}
	return res
}

func TestAcceptedBlackmarketScan(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	res := scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)

	if res.Transaction.Status != game.TransactionAccepted {
		t.Fatalf("expected accepted, got %s", res.Transaction.Status)
	}
	if res.Transaction.Points != 500 {
		t.Errorf("expected 500 points, got %d", res.Transaction.Points)
	}
	if !res.Committed {
		t.Error("expected a committed result")
	}
	if res.TeamScore == nil || res.TeamScore.Score != 500 {
		t.Errorf("expected team score 500, got %+v", res.TeamScore)
	}
	if res.TeamScore.TokensScanned != 1 {
		t.Errorf("expected tokensScanned 1, got %d", res.TeamScore.TokensScanned)
	}
}

func TestUnknownTokenIsRejectedButLogged(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	res := scan(t, p, "tok-nope", "team-1", game.ModeBlackMarket)

	if res.Transaction.Status != game.TransactionRejected {
		t.Fatalf("expected rejected, got %s", res.Transaction.Status)
	}
	if res.TeamScore != nil {
		t.Error("rejected scan must not create a team")
	}

	// The log reflects every submitted event.
	s := m.Snapshot()
	if len(s.Transactions) != 1 {
		t.Fatalf("expected 1 transaction in log, got %d", len(s.Transactions))
	}
}

func TestDuplicateAcrossTeams(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	first := scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)
	second := scan(t, p, "tok-a", "team-2", game.ModeBlackMarket)

	if second.Transaction.Status != game.TransactionDuplicate {
		t.Fatalf("expected duplicate, got %s", second.Transaction.Status)
	}
	if second.Transaction.OriginalTransactionID != first.Transaction.ID {
		t.Errorf("duplicate should reference %s, got %s",
			first.Transaction.ID, second.Transaction.OriginalTransactionID)
	}
	if second.Transaction.Points != 0 {
		t.Errorf("duplicate must carry 0 points, got %d", second.Transaction.Points)
	}

	s := m.Snapshot()
	if s.Teams["team-1"].Score != 500 {
		t.Errorf("team-1 score changed: %d", s.Teams["team-1"].Score)
	}
	if _, ok := s.Teams["team-2"]; ok {
		t.Error("duplicate must not create a score for team-2")
	}

	// Every duplicate resolves to an accepted original.
	for _, tx := range s.Transactions {
		if tx.Status != game.TransactionDuplicate {
			continue
		}
		found := false
		for _, orig := range s.Transactions {
			if orig.ID == tx.OriginalTransactionID && orig.Status == game.TransactionAccepted {
				found = true
			}
		}
		if !found {
			t.Errorf("orphaned duplicate %s", tx.ID)
		}
	}
}

func TestDetectiveScanScoresZero(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	res := scan(t, p, "tok-b", "team-1", game.ModeDetective)

	if res.Transaction.Status != game.TransactionAccepted {
		t.Fatalf("expected accepted, got %s", res.Transaction.Status)
	}
	if res.Transaction.Points != 0 {
		t.Errorf("detective scan must carry 0 points, got %d", res.Transaction.Points)
	}

	s := m.Snapshot()
	team := s.Teams["team-1"]
	if team.Score != 0 {
		t.Errorf("detective scan must not affect score, got %d", team.Score)
	}
	if team.TokensScanned != 1 {
		t.Errorf("detective scan still counts as scanned, got %d", team.TokensScanned)
	}
}

func TestGroupBonusPaidOnce(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	scan(t, p, "tok-b", "team-1", game.ModeBlackMarket)
	res := scan(t, p, "tok-c", "team-1", game.ModeBlackMarket)

	if len(res.CompletedGroups) != 1 || res.CompletedGroups[0] != "files" {
		t.Fatalf("expected files group completion, got %v", res.CompletedGroups)
	}
	if res.BonusPoints != 20300 {
		t.Errorf("expected bonus 20300, got %d", res.BonusPoints)
	}

	s := m.Snapshot()
	team := s.Teams["team-1"]
	if team.BaseScore != 20300 {
		t.Errorf("expected base 20300, got %d", team.BaseScore)
	}
	if team.BonusPoints != 20300 {
		t.Errorf("expected bonus 20300, got %d", team.BonusPoints)
	}
	if team.Score != 40600 {
		t.Errorf("expected score 40600, got %d", team.Score)
	}

	// Re-scanning a member is a duplicate and pays nothing further.
	dup := scan(t, p, "tok-b", "team-1", game.ModeBlackMarket)
	if dup.Transaction.Status != game.TransactionDuplicate {
		t.Fatalf("expected duplicate, got %s", dup.Transaction.Status)
	}
	after := m.Snapshot().Teams["team-1"]
	if after.Score != 40600 || after.BonusPoints != 20300 {
		t.Errorf("score moved after duplicate: %+v", after)
	}
}

func TestScanWhilePaused(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)
	if _, err := m.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, err := p.Process(context.Background(), ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "station-1",
	})
	if !errors.Is(err, game.ErrSessionPaused) {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}

	s := m.Snapshot()
	if len(s.Transactions) != 0 {
		t.Error("paused scan must not be recorded")
	}

	// Resume and the same scan goes through.
	if _, err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	res := scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)
	if res.Transaction.Status != game.TransactionAccepted {
		t.Errorf("expected accepted after resume, got %s", res.Transaction.Status)
	}
}

func TestScanWithoutSession(t *testing.T) {
	_, p, _ := setup(t)

	_, err := p.Process(context.Background(), ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "station-1",
	})
	if !errors.Is(err, game.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestValidationFailsFast(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	_, err := p.Process(context.Background(), ScanRequest{TeamID: "team-1"})
	if !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	_, err = p.Process(context.Background(), ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "s", Mode: "psychic",
	})
	if !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad mode, got %v", err)
	}
	if len(m.Snapshot().Transactions) != 0 {
		t.Error("validation failures must not create transactions")
	}
}

func TestTokensScannedMatchesAcceptedCount(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)
	scan(t, p, "tok-b", "team-1", game.ModeDetective)
	scan(t, p, "tok-a", "team-1", game.ModeBlackMarket) // duplicate
	scan(t, p, "tok-nope", "team-1", game.ModeBlackMarket)

	s := m.Snapshot()
	accepted := 0
	for _, tx := range s.Transactions {
		if tx.TeamID == "team-1" && tx.Status == game.TransactionAccepted {
			accepted++
		}
	}
	if got := s.Teams["team-1"].TokensScanned; got != accepted {
		t.Errorf("tokensScanned %d != accepted count %d", got, accepted)
	}
}

func TestVideoAssetSurfacesOnAcceptedScan(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	res := scan(t, p, "tok-v", "team-1", game.ModeBlackMarket)
	if res.VideoAsset != "assets/v.mp4" {
		t.Errorf("expected video asset, got %q", res.VideoAsset)
	}

	dup := scan(t, p, "tok-v", "team-1", game.ModeBlackMarket)
	if dup.VideoAsset != "" {
		t.Error("duplicate must not trigger playback")
	}
}

// brokenBackend starts forwarding to the inner backend and fails every Save
// once tripped.
type brokenBackend struct {
	storage.Backend
	broken bool
}

func (b *brokenBackend) Save(ctx context.Context, key string, value []byte) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, key, value)
}

func TestFailedCommitRollsBackMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &brokenBackend{Backend: storage.NewMemory()}
	gateway := storage.NewGateway(backend, logger)
	m := NewManager(gateway, logger)
	p := NewProcessor(m, testCatalog(logger), scoring.DefaultConfig(), logger)
	activeSession(t, m)

	backend.broken = true
	res, err := p.Process(context.Background(), ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "station-1",
	})
	if err == nil {
		t.Fatal("expected an error from the failed write")
	}
	if res.Committed {
		t.Fatal("failed write must not commit")
	}

	// Memory must not run ahead of storage: once the disk recovers the same
	// token must still be scannable, and no trace of the failed attempt may
	// remain in the log or scores.
	s := m.Snapshot()
	if len(s.Transactions) != 0 {
		t.Errorf("expected empty log after rollback, got %d entries", len(s.Transactions))
	}
	if _, ok := s.Teams["team-1"]; ok {
		t.Error("expected no team state after rollback")
	}

	backend.broken = false
	retry := scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)
	if retry.Transaction.Status != game.TransactionAccepted {
		t.Fatalf("expected accepted retry, got %s", retry.Transaction.Status)
	}
	if retry.TeamScore.Score != 500 {
		t.Errorf("expected score 500 after retry, got %d", retry.TeamScore.Score)
	}
}

func TestOrphanedDuplicateIsRejectedAndRecorded(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	// An index entry pointing at a transaction that was never appended, the
	// kind of inconsistency a corrupted restore could leave behind.
	m.acceptedTokens["tok-a"] = "ghost-tx"

	res := scan(t, p, "tok-a", "team-1", game.ModeBlackMarket)

	if res.Transaction.Status != game.TransactionRejected {
		t.Fatalf("expected rejected, got %s", res.Transaction.Status)
	}
	if res.Transaction.OriginalTransactionID != "" {
		t.Errorf("orphan must not reference an original, got %q", res.Transaction.OriginalTransactionID)
	}
	if !res.Committed {
		t.Error("expected the rejection recorded in the log")
	}

	s := m.Snapshot()
	if len(s.Transactions) != 1 || s.Transactions[0].Reason != "orphaned duplicate" {
		t.Errorf("unexpected log: %+v", s.Transactions)
	}
	if _, ok := s.Teams["team-1"]; ok {
		t.Error("orphan must not create team state")
	}
}

func TestConfigDriftMidScanCommitsRejection(t *testing.T) {
	m, p, _ := setup(t)
	activeSession(t, m)

	// Catalog/config drift after the startup validation: the token's memory
	// type no longer has a multiplier.
	p.UpdateConfig(scoring.Config{
		BaseValues:      scoring.DefaultConfig().BaseValues,
		TypeMultipliers: map[string]int{},
	})

	res, err := p.Process(context.Background(), ScanRequest{
		TokenID: "tok-a", TeamID: "team-1", StationID: "station-1",
	})
	if !errors.Is(err, game.ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if res.Transaction.Status != game.TransactionRejected {
		t.Fatalf("expected rejected, got %s", res.Transaction.Status)
	}
	if res.Transaction.Points != 0 {
		t.Errorf("expected zero points, got %d", res.Transaction.Points)
	}
	if !res.Committed {
		t.Error("the rejection must still reach the log")
	}

	s := m.Snapshot()
	if len(s.Transactions) != 1 || s.Transactions[0].Reason != "scoring configuration missing" {
		t.Errorf("unexpected log: %+v", s.Transactions)
	}
	if _, ok := s.Teams["team-1"]; ok {
		t.Error("a scan that never scored must not create team state")
	}
}
