package teams

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/events"
)

// Tier ranks how a raw name was resolved. Lower values are stronger.
type Tier int

const (
	TierExact Tier = iota
	TierAbbr
	TierAlias
	TierUnresolved
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "EXACT"
	case TierAbbr:
		return "ABBR"
	case TierAlias:
		return "ALIAS"
	default:
		return "UNRESOLVED"
	}
}

// CanonicalTeam is the single identity a team resolves to within a sport.
type CanonicalTeam struct {
	ID            string
	Sport         events.Sport
	DisplayName   string
	Abbreviations []string        // upper-case, primary first
	Aliases       map[string]Tier // normalized key -> tier it resolves at
}

// PrimaryAbbr returns the first abbreviation, or the ID when none is listed.
func (t *CanonicalTeam) PrimaryAbbr() string {
	if len(t.Abbreviations) > 0 {
		return t.Abbreviations[0]
	}
	return strings.ToUpper(t.ID)
}

// AmbiguousAlias reports a normalized key claimed by more than one team
// in the same sport. The key is withheld from lookups.
type AmbiguousAlias struct {
	Sport   events.Sport
	Alias   string
	TeamIDs []string
}

func (a AmbiguousAlias) Error() string {
	return fmt.Sprintf("ambiguous alias %q in %s: %s", a.Alias, a.Sport, strings.Join(a.TeamIDs, ", "))
}

type entry struct {
	id   string
	tier Tier
}

// Table is an immutable, collision-checked alias table.
type Table struct {
	version   string
	teams     map[events.Sport]map[string]*CanonicalTeam
	lookup    map[events.Sport]map[string]entry
	ambiguous map[events.Sport]map[string][]string
	issues    []AmbiguousAlias
}

// NewTable validates an alias file and indexes every name variant.
// Structural defects (unknown sport, missing id, duplicate id) are errors.
// Alias collisions are not: they are collected into Issues and the
// colliding key is left unresolvable.
func NewTable(f config.AliasFile) (*Table, error) {
	t := &Table{
		version:   f.Version,
		teams:     make(map[events.Sport]map[string]*CanonicalTeam),
		lookup:    make(map[events.Sport]map[string]entry),
		ambiguous: make(map[events.Sport]map[string][]string),
	}

	sportKeys := make([]string, 0, len(f.Sports))
	for k := range f.Sports {
		sportKeys = append(sportKeys, k)
	}
	sort.Strings(sportKeys)

	for _, key := range sportKeys {
		sport, err := events.ParseSport(key)
		if err != nil {
			return nil, fmt.Errorf("alias table: %w", err)
		}
		if err := t.addSport(sport, f.Sports[key]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) addSport(sport events.Sport, entries []config.TeamEntry) error {
	teams := make(map[string]*CanonicalTeam, len(entries))
	claims := make(map[string]map[string]Tier) // key -> team id -> best tier

	claim := func(teamID, raw string, tier Tier) {
		k := NormalizeKey(raw)
		if k == "" {
			return
		}
		byTeam, ok := claims[k]
		if !ok {
			byTeam = make(map[string]Tier)
			claims[k] = byTeam
		}
		if prev, seen := byTeam[teamID]; !seen || tier < prev {
			byTeam[teamID] = tier
		}
	}

	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" || strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("alias table: %s entry %d missing id or name", sport, i)
		}
		if _, dup := teams[id]; dup {
			return fmt.Errorf("alias table: %s duplicate team id %q", sport, id)
		}

		team := &CanonicalTeam{
			ID:          id,
			Sport:       sport,
			DisplayName: strings.TrimSpace(e.Name),
			Aliases:     make(map[string]Tier),
		}
		for _, a := range e.Abbreviations {
			if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
				team.Abbreviations = append(team.Abbreviations, a)
			}
		}
		teams[id] = team

		claim(id, e.Name, TierExact)
		claim(id, id, TierAbbr)
		for _, a := range team.Abbreviations {
			claim(id, a, TierAbbr)
		}
		claim(id, e.City, TierAlias)
		claim(id, e.Mascot, TierAlias)
		if e.City != "" && e.Mascot != "" {
			claim(id, e.City+" "+e.Mascot, TierExact)
		}
		for _, a := range e.Aliases {
			claim(id, a, TierAlias)
		}
	}

	lookup := make(map[string]entry, len(claims))
	ambiguous := make(map[string][]string)
	for k, byTeam := range claims {
		if len(byTeam) > 1 {
			ids := make([]string, 0, len(byTeam))
			for id := range byTeam {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			ambiguous[k] = ids
			t.issues = append(t.issues, AmbiguousAlias{Sport: sport, Alias: k, TeamIDs: ids})
			continue
		}
		for id, tier := range byTeam {
			lookup[k] = entry{id: id, tier: tier}
			teams[id].Aliases[k] = tier
		}
	}

	sort.Slice(t.issues, func(i, j int) bool {
		if t.issues[i].Sport != t.issues[j].Sport {
			return t.issues[i].Sport < t.issues[j].Sport
		}
		return t.issues[i].Alias < t.issues[j].Alias
	})

	t.teams[sport] = teams
	t.lookup[sport] = lookup
	t.ambiguous[sport] = ambiguous
	return nil
}

func (t *Table) Version() string { return t.version }

// Issues returns every alias collision found at load time.
func (t *Table) Issues() []AmbiguousAlias { return t.issues }

// Team returns the canonical team for an ID.
func (t *Table) Team(sport events.Sport, id string) (*CanonicalTeam, bool) {
	team, ok := t.teams[sport][id]
	return team, ok
}

// TeamCount returns the number of canonical teams across all sports.
func (t *Table) TeamCount() int {
	n := 0
	for _, m := range t.teams {
		n += len(m)
	}
	return n
}

// HasSport reports whether the table defines any teams for sport.
func (t *Table) HasSport(sport events.Sport) bool {
	return len(t.teams[sport]) > 0
}

func (t *Table) get(sport events.Sport, key string) (entry, bool) {
	e, ok := t.lookup[sport][key]
	return e, ok
}

func (t *Table) isAmbiguous(sport events.Sport, key string) bool {
	_, ok := t.ambiguous[sport][key]
	return ok
}
