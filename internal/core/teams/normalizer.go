package teams

import (
	"strings"
	"sync/atomic"

	"github.com/charleschow/market-matcher/internal/events"
)

// Resolution is the outcome of normalizing one raw team name.
type Resolution struct {
	ID        string // canonical id, or a slug when unresolved
	Tier      Tier
	Key       string // normalized input
	Ambiguous bool   // key is claimed by more than one team
}

func (r Resolution) Resolved() bool { return r.Tier != TierUnresolved }

// Normalizer resolves raw names against the current alias table. The table
// can be swapped at runtime; lookups never block on a reload.
type Normalizer struct {
	table atomic.Pointer[Table]
}

func NewNormalizer(t *Table) *Normalizer {
	n := &Normalizer{}
	n.table.Store(t)
	return n
}

// Swap installs a new table and returns the previous one.
func (n *Normalizer) Swap(t *Table) *Table {
	return n.table.Swap(t)
}

// Table returns the table currently in use.
func (n *Normalizer) Table() *Table {
	return n.table.Load()
}

// Normalize maps a raw name to a canonical team within sport. It never
// fails: unknown names come back as TierUnresolved with a slug ID.
func (n *Normalizer) Normalize(raw string, sport events.Sport) Resolution {
	return n.Table().Resolve(raw, sport)
}

// Resolve is Normalize against a fixed table, for callers that must use
// one table snapshot across many lookups.
func (t *Table) Resolve(raw string, sport events.Sport) Resolution {
	key := NormalizeKey(raw)
	res := Resolution{ID: strings.ReplaceAll(key, " ", "-"), Tier: TierUnresolved, Key: key}
	if key == "" {
		return res
	}

	if e, ok := t.get(sport, key); ok {
		res.ID, res.Tier = e.id, e.tier
		return res
	}
	if t.isAmbiguous(sport, key) {
		res.Ambiguous = true
		return res
	}

	if id, ok := t.resolvePartial(sport, key); ok {
		res.ID, res.Tier = id, TierAlias
	}
	return res
}

// resolvePartial strips leading or trailing words ("Houston Texanz" ->
// "houston", "LA Chargers" -> "chargers") and accepts the result only when
// every partial hit agrees on a single team.
func (t *Table) resolvePartial(sport events.Sport, key string) (string, bool) {
	words := strings.Fields(key)
	if len(words) < 2 {
		return "", false
	}

	found := ""
	for i := 1; i < len(words); i++ {
		for _, part := range []string{
			strings.Join(words[:len(words)-i], " "),
			strings.Join(words[i:], " "),
		} {
			e, ok := t.get(sport, part)
			if !ok {
				continue
			}
			if found != "" && found != e.id {
				return "", false
			}
			found = e.id
		}
	}
	return found, found != ""
}
