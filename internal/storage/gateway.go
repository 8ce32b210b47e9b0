package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/scoring"
)

// Key layout. Backups embed their timestamp in the key so cleanup can age
// them out without reading values.
const (
	keySession     = "session:"
	keyArchive     = "archive:session:"
	keyBackup      = "backup:session:"
	keyGameState   = "game-state"
	keyAdminConfig = "admin-config"
	keyTokens      = "tokens"
)

const backupTimeFormat = time.RFC3339Nano

// Gateway wraps a Backend with the domain helpers and serializes writes per
// key, so a backup or cleanup pass can never interleave destructively with a
// session save. Everything round-trips through JSON: stored values never
// alias caller-held state in either direction.
type Gateway struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewGateway(backend Backend, logger *slog.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Backend exposes the underlying variant for health checks.
func (g *Gateway) Backend() Backend { return g.backend }

// keyLock returns the held mutex for a key; the caller must Unlock it.
func (g *Gateway) keyLock(key string) *sync.Mutex {
	g.mu.Lock()
	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}
	g.mu.Unlock()
	l.Lock()
	return l
}

func (g *Gateway) saveJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	l := g.keyLock(key)
	defer l.Unlock()
	if err := g.backend.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: %s: %v", game.ErrPersistence, key, err)
	}
	return nil
}

func (g *Gateway) loadJSON(ctx context.Context, key string, v any) error {
	raw, err := g.backend.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// SaveSession durably writes the session under its active-session key.
func (g *Gateway) SaveSession(ctx context.Context, s *game.Session) error {
	return g.saveJSON(ctx, keySession+s.ID, s)
}

// LoadSession reads one session by id. Returns ErrNotFound if absent.
func (g *Gateway) LoadSession(ctx context.Context, id string) (*game.Session, error) {
	var s game.Session
	if err := g.loadJSON(ctx, keySession+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAllSessions returns every non-archived session.
func (g *Gateway) GetAllSessions(ctx context.Context) ([]*game.Session, error) {
	return g.sessionsByPrefix(ctx, keySession)
}

// GetArchivedSessions returns terminal history, oldest first by id order.
func (g *Gateway) GetArchivedSessions(ctx context.Context) ([]*game.Session, error) {
	return g.sessionsByPrefix(ctx, keyArchive)
}

func (g *Gateway) sessionsByPrefix(ctx context.Context, prefix string) ([]*game.Session, error) {
	values, err := g.backend.Values(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*game.Session, 0, len(values))
	for _, raw := range values {
		var s game.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding session under %s: %w", prefix, err)
		}
		out = append(out, &s)
	}
	return out, nil
}

// DeleteSession removes an active-session record.
func (g *Gateway) DeleteSession(ctx context.Context, id string) error {
	l := g.keyLock(keySession + id)
	defer l.Unlock()
	return g.backend.Delete(ctx, keySession+id)
}

// BackupSession writes an immutable dated snapshot and returns its key.
func (g *Gateway) BackupSession(ctx context.Context, s *game.Session) (string, error) {
	key := keyBackup + s.ID + ":" + g.now().UTC().Format(backupTimeFormat)
	if err := g.saveJSON(ctx, key, s); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveSession moves a session to archival storage and clears its
// active-session record. Both writes happen under the session's key lock so
// no observer can interleave between them.
func (g *Gateway) ArchiveSession(ctx context.Context, s *game.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	l := g.keyLock(keySession + s.ID)
	defer l.Unlock()
	if err := g.backend.Save(ctx, keyArchive+s.ID, raw); err != nil {
		return fmt.Errorf("%w: archiving session %s: %v", game.ErrPersistence, s.ID, err)
	}
	if err := g.backend.Delete(ctx, keySession+s.ID); err != nil {
		return fmt.Errorf("%w: clearing active slot for %s: %v", game.ErrPersistence, s.ID, err)
	}
	return nil
}

// CleanOldBackups deletes backups whose embedded timestamp is older than the
// given age and returns how many were deleted. Keys whose timestamp does not
// parse are left alone and logged.
func (g *Gateway) CleanOldBackups(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := g.backend.Keys(ctx, keyBackup)
	if err != nil {
		return 0, err
	}
	cutoff := g.now().Add(-maxAge)
	deleted := 0
	for _, key := range keys {
		rest := strings.TrimPrefix(key, keyBackup)
		i := strings.Index(rest, ":")
		if i < 0 {
			g.logger.Warn("backup key missing timestamp", "key", key)
			continue
		}
		ts, err := time.Parse(backupTimeFormat, rest[i+1:])
		if err != nil {
			g.logger.Warn("backup key with unparsable timestamp", "key", key, "error", err)
			continue
		}
		if !ts.Before(cutoff) {
			continue
		}
		l := g.keyLock(key)
		err = g.backend.Delete(ctx, key)
		l.Unlock()
		if err != nil {
			return deleted, fmt.Errorf("%w: deleting backup %s: %v", game.ErrPersistence, key, err)
		}
		deleted++
	}
	return deleted, nil
}

// SaveGameState persists the scores + video status snapshot.
func (g *Gateway) SaveGameState(ctx context.Context, st *game.GameState) error {
	return g.saveJSON(ctx, keyGameState, st)
}

func (g *Gateway) LoadGameState(ctx context.Context) (*game.GameState, error) {
	var st game.GameState
	if err := g.loadJSON(ctx, keyGameState, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveAdminConfig persists the scoring tables.
func (g *Gateway) SaveAdminConfig(ctx context.Context, cfg scoring.Config) error {
	return g.saveJSON(ctx, keyAdminConfig, cfg)
}

func (g *Gateway) LoadAdminConfig(ctx context.Context) (scoring.Config, error) {
	var cfg scoring.Config
	if err := g.loadJSON(ctx, keyAdminConfig, &cfg); err != nil {
		return scoring.Config{}, err
	}
	return cfg, nil
}

// SaveTokens caches the token catalog.
func (g *Gateway) SaveTokens(ctx context.Context, tokens []game.Token) error {
	return g.saveJSON(ctx, keyTokens, tokens)
}

func (g *Gateway) LoadTokens(ctx context.Context) ([]game.Token, error) {
	var tokens []game.Token
	if err := g.loadJSON(ctx, keyTokens, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}
