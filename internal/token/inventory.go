package token

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

// groupLabelRe matches the catalog's group label format: a display name
// followed by a completion multiplier, e.g. "Server Logs (x2)".
var groupLabelRe = regexp.MustCompile(`^(.*?)\s*\(x(\d+)\)$`)

// GroupEntry is the derived inventory record for one normalized group name.
type GroupEntry struct {
	Name        string   `json:"name"`
	Multiplier  int      `json:"multiplier"`
	Members     []string `json:"members"`
	MemoryTypes []string `json:"memoryTypes"`
}

// Inventory maps normalized group names to their derived entries, plus a
// reverse index from token id to the groups it belongs to.
type Inventory struct {
	entries map[string]*GroupEntry
	byToken map[string][]string
}

// ParseGroupLabel splits a group label into its normalized name and
// multiplier. Labels without a "(xN)" suffix get multiplier 1. Returns
// ok=false for an empty label.
func ParseGroupLabel(label string) (name string, multiplier int, ok bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", 0, false
	}
	multiplier = 1
	if m := groupLabelRe.FindStringSubmatch(label); m != nil {
		label = m[1]
		multiplier, _ = strconv.Atoi(m[2])
	}
	name = strings.ToLower(strings.TrimSpace(label))
	if name == "" {
		return "", 0, false
	}
	return name, multiplier, true
}

func buildInventory(tokens map[string]game.Token, logger *slog.Logger) *Inventory {
	inv := &Inventory{
		entries: make(map[string]*GroupEntry),
		byToken: make(map[string][]string),
	}

	// Deterministic build order so last-writer-wins is stable.
	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		t := tokens[id]
		name, mult, ok := ParseGroupLabel(t.Group)
		if !ok {
			continue
		}
		e := inv.entries[name]
		if e == nil {
			e = &GroupEntry{Name: name, Multiplier: mult}
			inv.entries[name] = e
		} else if e.Multiplier != mult {
			// Data-quality finding, not fatal. Last writer wins.
			if logger != nil {
				logger.Warn("group multiplier mismatch",
					"group", name,
					"token", id,
					"have", e.Multiplier,
					"got", mult,
				)
			}
			e.Multiplier = mult
		}
		e.Members = append(e.Members, id)
		if t.MemoryType != "" && !contains(e.MemoryTypes, t.MemoryType) {
			e.MemoryTypes = append(e.MemoryTypes, t.MemoryType)
		}
		inv.byToken[id] = append(inv.byToken[id], name)
	}

	for _, e := range inv.entries {
		sort.Strings(e.Members)
		sort.Strings(e.MemoryTypes)
	}
	return inv
}

// Lookup returns the entry for a normalized group name.
func (inv *Inventory) Lookup(name string) (*GroupEntry, bool) {
	e, ok := inv.entries[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// GroupsFor returns the entries of every group the token belongs to.
func (inv *Inventory) GroupsFor(tokenID string) []*GroupEntry {
	names := inv.byToken[tokenID]
	out := make([]*GroupEntry, 0, len(names))
	for _, n := range names {
		out = append(out, inv.entries[n])
	}
	return out
}

// Names returns all normalized group names, sorted.
func (inv *Inventory) Names() []string {
	out := make([]string, 0, len(inv.entries))
	for n := range inv.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
