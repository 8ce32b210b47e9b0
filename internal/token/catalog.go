// Package token holds the token catalog and the group inventory index derived
// from it. The catalog is read-only to the rest of the core; the inventory is
// rebuilt whenever the catalog is reloaded and cached otherwise.
package token

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

// Catalog is an immutable snapshot of the token catalog plus its derived
// group inventory.
type Catalog struct {
	tokens map[string]game.Token
	inv    *Inventory
}

// New builds a catalog and its group inventory from a token list. Later
// entries win on duplicate ids.
func New(tokens []game.Token, logger *slog.Logger) *Catalog {
	m := make(map[string]game.Token, len(tokens))
	for _, t := range tokens {
		m[t.ID] = t
	}
	return &Catalog{tokens: m, inv: buildInventory(m, logger)}
}

// LoadFile reads a JSON token catalog from disk. The file holds either a
// plain array of tokens or an object keyed by token id.
func LoadFile(path string, logger *slog.Logger) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token catalog: %w", err)
	}
	tokens, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing token catalog %q: %w", path, err)
	}
	return New(tokens, logger), nil
}

// Parse decodes a catalog document. Object form maps token id to entry; the
// key wins over any id field inside the entry.
func Parse(raw []byte) ([]game.Token, error) {
	var list []game.Token
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var byID map[string]game.Token
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list = make([]game.Token, 0, len(byID))
	for _, id := range ids {
		t := byID[id]
		t.ID = id
		list = append(list, t)
	}
	return list, nil
}

// Get returns the catalog entry for a token id.
func (c *Catalog) Get(id string) (game.Token, bool) {
	t, ok := c.tokens[id]
	return t, ok
}

// All returns the catalog entries sorted by id.
func (c *Catalog) All() []game.Token {
	out := make([]game.Token, 0, len(c.tokens))
	for _, t := range c.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of catalog entries.
func (c *Catalog) Len() int { return len(c.tokens) }

// Inventory returns the cached group inventory.
func (c *Catalog) Inventory() *Inventory { return c.inv }
