// Package scoring turns accepted scans into points and evaluates
// group-completion bonuses. Both lookup tables are configuration; a missing
// key is a hard error, never a silent zero, so catalog/config drift cannot
// mask itself as a worthless token.
package scoring

import (
	"fmt"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/token"
)

// Config holds the two score lookup tables: value rating to base points, and
// memory type to multiplier.
type Config struct {
	BaseValues      map[int]int    `json:"baseValues"`
	TypeMultipliers map[string]int `json:"typeMultipliers"`
}

// DefaultConfig returns the stock event tables.
func DefaultConfig() Config {
	return Config{
		BaseValues: map[int]int{
			1: 100,
			2: 500,
			3: 2000,
			4: 8000,
			5: 20000,
		},
		TypeMultipliers: map[string]int{
			"Personal":  1,
			"Business":  3,
			"Technical": 2,
		},
	}
}

// TokenValue computes the point value of a token for a scan mode. Detective
// scans record evidence without awarding points.
func (c Config) TokenValue(tok game.Token, mode game.ScanMode) (int, error) {
	if mode == game.ModeDetective {
		return 0, nil
	}
	base, ok := c.BaseValues[tok.ValueRating]
	if !ok {
		return 0, fmt.Errorf("%w: no base value for rating %d (token %s)",
			game.ErrConfiguration, tok.ValueRating, tok.ID)
	}
	mult, ok := c.TypeMultipliers[tok.MemoryType]
	if !ok {
		return 0, fmt.Errorf("%w: no multiplier for memory type %q (token %s)",
			game.ErrConfiguration, tok.MemoryType, tok.ID)
	}
	return base * mult, nil
}

// GroupValue sums the blackmarket value of every member token of a group.
func (c Config) GroupValue(entry *token.GroupEntry, lookup func(id string) (game.Token, bool)) (int, error) {
	total := 0
	for _, id := range entry.Members {
		tok, ok := lookup(id)
		if !ok {
			return 0, fmt.Errorf("%w: group %q references token %s not in catalog",
				game.ErrConfiguration, entry.Name, id)
		}
		v, err := c.TokenValue(tok, game.ModeBlackMarket)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// EvaluateGroupBonus decides whether completing scanned just pushed the team
// over the line for this group, and the bonus owed if so. The group's total
// worth is re-rated at the multiplier once complete: prior per-scan points
// stay as recorded, only the delta (multiplier-1 times the group value) is
// paid. A group already in the team's completedGroups never pays again.
func (c Config) EvaluateGroupBonus(
	team *game.TeamScore,
	entry *token.GroupEntry,
	scanned map[string]struct{},
	lookup func(id string) (game.Token, bool),
) (bonus int, triggered bool, err error) {
	if team.HasCompletedGroup(entry.Name) {
		return 0, false, nil
	}
	for _, id := range entry.Members {
		if _, ok := scanned[id]; !ok {
			return 0, false, nil
		}
	}
	total, err := c.GroupValue(entry, lookup)
	if err != nil {
		return 0, false, err
	}
	return (entry.Multiplier - 1) * total, true, nil
}

// Validate reports whether the tables cover the given catalog, so config
// drift is caught at load time rather than mid-event.
func (c Config) Validate(tokens []game.Token) error {
	for _, tok := range tokens {
		if _, err := c.TokenValue(tok, game.ModeBlackMarket); err != nil {
			return err
		}
	}
	return nil
}
