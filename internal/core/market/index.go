package market

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
)

// KeyKind is the family a lookup key belongs to.
type KeyKind string

const (
	KeyCanonical KeyKind = "id"   // both teams resolved to canonical ids
	KeyAbbr      KeyKind = "abbr" // abbreviation pair (alias table or ticker suffixes)
	KeySlug      KeyKind = "slug" // normalized raw names, for unresolved teams
)

// Key is an unordered team pair within one key family.
type Key struct {
	Kind KeyKind
	A, B string
}

// NewKey sorts the pair so "BUF|HOU" and "HOU|BUF" are the same key.
func NewKey(kind KeyKind, a, b string) Key {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if b < a {
		a, b = b, a
	}
	return Key{Kind: kind, A: a, B: b}
}

func (k Key) String() string { return string(k.Kind) + ":" + k.A + "|" + k.B }

// Pair is the set of outcome contracts for one event. TeamA is the first
// team named in the title (the away side of "A at B"). Either leg may be nil.
type Pair struct {
	EventKey  string
	TeamA     string
	TeamB     string
	TierA     teams.Tier
	TierB     teams.Tier
	A         *Contract // YES pays if TeamA wins
	B         *Contract // YES pays if TeamB wins
	Draw      *Contract
	Hinted    bool // legs were assigned from subtitle/ticker hints, not position
	CloseTime time.Time
	Volume    int64
}

// Side returns the contract whose YES outcome is team's win.
func (p *Pair) Side(team string) *Contract {
	switch team {
	case p.TeamA:
		return p.A
	case p.TeamB:
		return p.B
	}
	return nil
}

// Contracts returns the non-nil legs in A, B order.
func (p *Pair) Contracts() []*Contract {
	out := make([]*Contract, 0, 2)
	if p.A != nil {
		out = append(out, p.A)
	}
	if p.B != nil {
		out = append(out, p.B)
	}
	return out
}

const (
	ReasonNoTitle         = "no_title"
	ReasonUnresolvedTeam  = "unresolved_team"
	ReasonTooManyOutcomes = "too_many_outcomes"
	ReasonDuplicateSide   = "duplicate_outcome"
	ReasonInactive        = "inactive"
	ReasonSportMismatch   = "sport_mismatch"
)

// Unindexed records an event group that did not make it into the
// canonical key family. Partial is true when the group is still reachable
// through abbreviation or slug keys.
type Unindexed struct {
	EventKey string
	Tickers  []string
	Title    string
	Reason   string
	Partial  bool
}

// Index is an immutable lookup from team pairs to contract pairs for one
// sport. It is built once per cache generation and never mutated.
type Index struct {
	Sport        events.Sport
	Generation   string
	AliasVersion string
	BuiltAt      time.Time
	Contracts    int            // rows considered after filtering
	Skipped      map[string]int // reason -> rows filtered before grouping
	Unindexed    []Unindexed

	pairs []*Pair
	keys  map[Key][]*Pair
}

// Lookup returns the pairs stored under key. The slice must not be modified.
func (ix *Index) Lookup(k Key) []*Pair {
	if ix == nil {
		return nil
	}
	return ix.keys[k]
}

func (ix *Index) Pairs() []*Pair { return ix.pairs }

func (ix *Index) KeyCount() int { return len(ix.keys) }

// Build groups contracts into events, resolves both teams of every event,
// and indexes each pair under every key family it can be expressed in.
// One pass over contracts; no per-event store access.
func Build(contracts []Contract, sport events.Sport, table *teams.Table) *Index {
	ix := &Index{
		Sport:        sport,
		Generation:   uuid.NewString(),
		AliasVersion: table.Version(),
		BuiltAt:      time.Now().UTC(),
		Skipped:      make(map[string]int),
		keys:         make(map[Key][]*Pair),
	}

	groups := make(map[string][]*Contract)
	var order []string
	for _, i := range filterRows(contracts, sport, ix.Skipped) {
		c := &contracts[i]
		g := c.GroupKey()
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], c)
		ix.Contracts++
	}
	sort.Strings(order)

	b := builder{table: table, sport: sport}
	for _, g := range order {
		pair, keys, miss := b.pairFor(g, groups[g])
		if miss != nil {
			ix.Unindexed = append(ix.Unindexed, *miss)
		}
		if pair == nil {
			continue
		}
		ix.pairs = append(ix.pairs, pair)
		for _, k := range keys {
			ix.keys[k] = append(ix.keys[k], pair)
		}
	}
	return ix
}

// filterRows returns the indices of rows to index, in input order. The
// sport filter is dropped entirely when it would exclude every active row,
// so a feed with broken sport tagging degrades to name-based filtering
// instead of an empty index.
func filterRows(contracts []Contract, sport events.Sport, skipped map[string]int) []int {
	active := make([]int, 0, len(contracts))
	for i := range contracts {
		if !contracts[i].Active() {
			skipped[ReasonInactive]++
			continue
		}
		active = append(active, i)
	}

	keep := make([]int, 0, len(active))
	for _, i := range active {
		if s := contracts[i].Sport; s == "" || s == sport {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return active
	}
	skipped[ReasonSportMismatch] += len(active) - len(keep)
	return keep
}

type builder struct {
	table *teams.Table
	sport events.Sport
}

type leg struct {
	c    *Contract
	hint teams.Resolution
}

func (b builder) pairFor(eventKey string, group []*Contract) (*Pair, []Key, *Unindexed) {
	sort.Slice(group, func(i, j int) bool { return group[i].Ticker < group[j].Ticker })

	miss := &Unindexed{EventKey: eventKey}
	var legs []leg
	var draw *Contract
	for _, c := range group {
		miss.Tickers = append(miss.Tickers, c.Ticker)
		if miss.Title == "" {
			miss.Title = c.Title
		}
		if c.IsDraw() {
			draw = c
			continue
		}
		legs = append(legs, leg{c: c, hint: b.sideHint(c)})
	}

	if len(legs) == 0 {
		miss.Reason = ReasonNoTitle
		return nil, nil, miss
	}
	if len(legs) > 2 {
		miss.Reason = ReasonTooManyOutcomes
		return nil, nil, miss
	}

	rawA, rawB, ok := "", "", false
	for _, c := range group {
		if rawA, rawB, ok = splitTitle(c.Title); ok {
			break
		}
	}

	var resA, resB teams.Resolution
	switch {
	case ok:
		resA, resB = b.table.Resolve(rawA, b.sport), b.table.Resolve(rawB, b.sport)
	case len(legs) == 2 && legs[0].hint.Resolved() && legs[1].hint.Resolved():
		// No parsable title, but both legs name a team.
		resA, resB = legs[0].hint, legs[1].hint
	default:
		miss.Reason = ReasonNoTitle
		return nil, nil, miss
	}

	if resA.ID == resB.ID {
		miss.Reason = ReasonUnresolvedTeam
		return nil, nil, miss
	}

	p := &Pair{
		EventKey: eventKey,
		TeamA:    resA.ID,
		TeamB:    resB.ID,
		TierA:    resA.Tier,
		TierB:    resB.Tier,
		Draw:     draw,
	}
	if !assignLegs(p, legs) {
		miss.Reason = ReasonDuplicateSide
		return nil, nil, miss
	}
	for _, c := range group {
		p.Volume += c.Volume
		if c.CloseTime.After(p.CloseTime) {
			p.CloseTime = c.CloseTime
		}
	}

	keys := b.keysFor(p, resA, resB)
	if resA.Resolved() && resB.Resolved() {
		return p, keys, nil
	}
	miss.Reason = ReasonUnresolvedTeam
	miss.Partial = len(keys) > 0
	return p, keys, miss
}

// sideHint resolves which team a leg's YES outcome refers to, from the
// yes-subtitle or, failing that, the ticker suffix.
func (b builder) sideHint(c *Contract) teams.Resolution {
	if c.YesSubTitle != "" {
		if r := b.table.Resolve(stripOutcomeNoise(c.YesSubTitle), b.sport); r.Resolved() {
			return r
		}
	}
	if s := c.TickerSuffix(); s != "" {
		return b.table.Resolve(s, b.sport)
	}
	return teams.Resolution{Tier: teams.TierUnresolved}
}

// assignLegs places legs on A/B by hint, filling a single unknown leg with
// the remaining side. Returns false when two legs claim the same team.
func assignLegs(p *Pair, legs []leg) bool {
	var unplaced []*Contract
	hinted := 0
	for _, l := range legs {
		switch {
		case l.hint.Resolved() && l.hint.ID == p.TeamA:
			if p.A != nil {
				return false
			}
			p.A = l.c
			hinted++
		case l.hint.Resolved() && l.hint.ID == p.TeamB:
			if p.B != nil {
				return false
			}
			p.B = l.c
			hinted++
		default:
			unplaced = append(unplaced, l.c)
		}
	}
	p.Hinted = hinted > 0

	for _, c := range unplaced {
		if p.A == nil {
			p.A = c
		} else {
			p.B = c
		}
	}
	return true
}

func (b builder) keysFor(p *Pair, resA, resB teams.Resolution) []Key {
	var keys []Key
	add := func(k Key) {
		for _, have := range keys {
			if have == k {
				return
			}
		}
		keys = append(keys, k)
	}

	if resA.Resolved() && resB.Resolved() {
		add(NewKey(KeyCanonical, resA.ID, resB.ID))
	}

	abbrA, abbrB := b.abbreviations(resA), b.abbreviations(resB)
	// Ticker suffixes are the abbreviations the market side actually uses.
	if p.A != nil {
		abbrA = appendUnique(abbrA, p.A.TickerSuffix())
	}
	if p.B != nil {
		abbrB = appendUnique(abbrB, p.B.TickerSuffix())
	}
	for _, a := range abbrA {
		for _, bb := range abbrB {
			if a != "" && bb != "" && a != bb {
				add(NewKey(KeyAbbr, a, bb))
			}
		}
	}

	if !(resA.Resolved() && resB.Resolved()) && resA.Key != "" && resB.Key != "" {
		add(NewKey(KeySlug, resA.ID, resB.ID))
	}
	return keys
}

func (b builder) abbreviations(r teams.Resolution) []string {
	if !r.Resolved() {
		return nil
	}
	team, ok := b.table.Team(b.sport, r.ID)
	if !ok {
		return nil
	}
	return append([]string(nil), team.Abbreviations...)
}

func appendUnique(list []string, s string) []string {
	s = strings.ToUpper(s)
	if s == "" {
		return list
	}
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
