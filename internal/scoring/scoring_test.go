package scoring

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenValue(t *testing.T) {
	cfg := DefaultConfig()

	// rating 2 × Personal(1) = 500
	v, err := cfg.TokenValue(game.Token{ID: "a", ValueRating: 2, MemoryType: "Personal"}, game.ModeBlackMarket)
	require.NoError(t, err)
	assert.Equal(t, 500, v)

	// rating 5 × Personal(1) = 20000
	v, err = cfg.TokenValue(game.Token{ID: "b", ValueRating: 5, MemoryType: "Personal"}, game.ModeBlackMarket)
	require.NoError(t, err)
	assert.Equal(t, 20000, v)

	// rating 1 × Business(3) = 300
	v, err = cfg.TokenValue(game.Token{ID: "c", ValueRating: 1, MemoryType: "Business"}, game.ModeBlackMarket)
	require.NoError(t, err)
	assert.Equal(t, 300, v)

	// rating 3 × Technical(2) = 4000
	v, err = cfg.TokenValue(game.Token{ID: "d", ValueRating: 3, MemoryType: "Technical"}, game.ModeBlackMarket)
	require.NoError(t, err)
	assert.Equal(t, 4000, v)
}

func TestTokenValueDetectiveIsZero(t *testing.T) {
	cfg := DefaultConfig()
	v, err := cfg.TokenValue(game.Token{ID: "b", ValueRating: 5, MemoryType: "Technical"}, game.ModeDetective)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestTokenValueMissingKeys(t *testing.T) {
	cfg := DefaultConfig()

	_, err := cfg.TokenValue(game.Token{ID: "x", ValueRating: 9, MemoryType: "Personal"}, game.ModeBlackMarket)
	require.ErrorIs(t, err, game.ErrConfiguration)

	_, err = cfg.TokenValue(game.Token{ID: "y", ValueRating: 1, MemoryType: "Astral"}, game.ModeBlackMarket)
	require.ErrorIs(t, err, game.ErrConfiguration)
}

func TestEvaluateGroupBonus(t *testing.T) {
	cfg := DefaultConfig()
	catalog := token.New([]game.Token{
		{ID: "b", ValueRating: 5, MemoryType: "Personal", Group: "Files (x2)"},
		{ID: "c", ValueRating: 1, MemoryType: "Business", Group: "Files (x2)"},
	}, discardLogger())
	entry, ok := catalog.Inventory().Lookup("files")
	require.True(t, ok)

	team := &game.TeamScore{TeamID: "team-1"}

	// Only one member scanned: no trigger.
	bonus, triggered, err := cfg.EvaluateGroupBonus(team, entry,
		map[string]struct{}{"b": {}}, catalog.Get)
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Zero(t, bonus)

	// Both members scanned: (2-1) × (20000+300) = 20300.
	scanned := map[string]struct{}{"b": {}, "c": {}}
	bonus, triggered, err = cfg.EvaluateGroupBonus(team, entry, scanned, catalog.Get)
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, 20300, bonus)

	// Once paid out, the same group never triggers again.
	team.CompletedGroups = append(team.CompletedGroups, "files")
	bonus, triggered, err = cfg.EvaluateGroupBonus(team, entry, scanned, catalog.Get)
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Zero(t, bonus)
}

func TestValidateCoversCatalog(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate([]game.Token{
		{ID: "a", ValueRating: 2, MemoryType: "Personal"},
	}))
	require.ErrorIs(t, cfg.Validate([]game.Token{
		{ID: "a", ValueRating: 7, MemoryType: "Personal"},
	}), game.ErrConfiguration)
}
