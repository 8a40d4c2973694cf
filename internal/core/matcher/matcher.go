// Package matcher associates live events with market contract pairs.
//
// A match normalizes both team names, looks up candidate pairs in the
// sport's index tier by tier, validates each candidate on close time and
// price complementarity, and scores what survives. Matching never returns
// an error: every failure is a Result with a status and reason.
package matcher

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/core/odds"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// IndexSource is the cache the matcher reads sport indexes from.
type IndexSource interface {
	Get(ctx context.Context, sport events.Sport) (indexcache.Snapshot, error)
}

// TableSource supplies the alias table events are normalized against.
type TableSource interface {
	Table() *teams.Table
}

type Options struct {
	Window    time.Duration   // max |close_time - start_time|
	Tolerance decimal.Decimal // price complementarity epsilon
	Weights   Weights
}

type Matcher struct {
	indexes IndexSource
	tables  TableSource
	opts    Options
}

func New(indexes IndexSource, tables TableSource, opts Options) *Matcher {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if !opts.Tolerance.IsPositive() {
		opts.Tolerance = decimal.RequireFromString("0.02")
	}
	if opts.Weights.TierScore == nil {
		opts.Weights = DefaultWeights()
	}
	return &Matcher{indexes: indexes, tables: tables, opts: opts}
}

// Match resolves one event against the current index for its sport.
func (m *Matcher) Match(ctx context.Context, ev Event) Result {
	start := time.Now()
	if !ev.Sport.Valid() {
		return m.observe(unmatched(ev, ReasonUnsupportedSport), start)
	}
	snap, err := m.indexes.Get(ctx, ev.Sport)
	return m.observe(m.resolve(ev, snap, err), start)
}

// MatchBatch matches events in order, reading each sport's index once.
func (m *Matcher) MatchBatch(ctx context.Context, evs []Event) []Result {
	type fetched struct {
		snap indexcache.Snapshot
		err  error
	}
	snaps := make(map[events.Sport]fetched)
	out := make([]Result, len(evs))
	for i, ev := range evs {
		start := time.Now()
		if !ev.Sport.Valid() {
			out[i] = m.observe(unmatched(ev, ReasonUnsupportedSport), start)
			continue
		}
		f, ok := snaps[ev.Sport]
		if !ok {
			f.snap, f.err = m.indexes.Get(ctx, ev.Sport)
			snaps[ev.Sport] = f
		}
		out[i] = m.observe(m.resolve(ev, f.snap, f.err), start)
	}
	return out
}

func (m *Matcher) observe(r Result, start time.Time) Result {
	sport := string(r.Event.Sport)
	if !r.Event.Sport.Valid() {
		sport = "unknown"
	}
	telemetry.Metrics.MatchResults.WithLabelValues(sport, string(r.Status)).Inc()
	telemetry.Metrics.MatchLatency.WithLabelValues(sport).Observe(time.Since(start).Seconds())
	return r
}

func unmatched(ev Event, reason Reason) Result {
	return Result{Event: ev, Status: StatusUnmatched, Reason: reason}
}

func (m *Matcher) resolve(ev Event, snap indexcache.Snapshot, err error) Result {
	if err != nil || snap.Index == nil {
		telemetry.Warnf("matcher: no %s index for %s: %v", ev.Sport, ev, err)
		return unmatched(ev, ReasonResourceUnavailable)
	}

	r := m.evaluate(ev, snap.Index, m.tables.Table())
	r.Stale = snap.Stale
	r.Generation = snap.Index.Generation
	return r
}

type keyGroup struct {
	tier MatchTier
	keys []market.Key
}

var tierRank = map[MatchTier]int{
	TierExactExact: 0,
	TierExactAbbr:  1,
	TierAbbrAbbr:   2,
	TierAlias:      3,
}

type candidate struct {
	pair       *market.Pair
	away, home *market.Contract
	passed     map[Validation]bool
	failure    Reason
	timeDiff   time.Duration
	confidence float64
	awayPrice  decimal.Decimal
	homePrice  decimal.Decimal
}

// evaluate is a pure function of the event, the index generation and the
// alias table.
func (m *Matcher) evaluate(ev Event, ix *market.Index, table *teams.Table) Result {
	res := Result{Event: ev, Status: StatusUnmatched}
	sm := newMachine()

	away := table.Resolve(ev.AwayTeam, ev.Sport)
	home := table.Resolve(ev.HomeTeam, ev.Sport)
	if away.ID == home.ID {
		res.Reason = ReasonNoCandidate
		return res
	}

	abA := eventAbbrs(table, ev.Sport, away, ev.AwayTeam)
	abH := eventAbbrs(table, ev.Sport, home, ev.HomeTeam)

	for _, g := range keyGroups(away, home, abA, abH) {
		cands := m.collect(ix, g, table, ev.Sport, away, home, abA, abH)
		if len(cands) == 0 {
			continue
		}
		res.Tier = g.tier
		m.step(sm, StatusCandidateFound)

		for _, c := range cands {
			m.validate(ev, c)
		}
		m.step(sm, StatusValidated)

		m.decide(&res, g.tier, cands)
		m.step(sm, res.Status)
		return res
	}

	res.Reason = ReasonNoCandidate
	return res
}

func (m *Matcher) step(sm *machine, next Status) {
	if err := sm.to(next); err != nil {
		telemetry.Errorf("%v", err)
	}
}

// keyGroups lists lookup keys in tier order: the canonical pair first,
// then abbreviation pairs, then raw slugs for names the table does not know.
func keyGroups(away, home teams.Resolution, abA, abH []string) []keyGroup {
	var groups []keyGroup
	if away.Resolved() && home.Resolved() {
		groups = append(groups, keyGroup{
			tier: pairTier(away.Tier, home.Tier),
			keys: []market.Key{market.NewKey(market.KeyCanonical, away.ID, home.ID)},
		})
	}

	var abbr []market.Key
	for _, a := range abA {
		for _, h := range abH {
			if a == h {
				continue
			}
			k := market.NewKey(market.KeyAbbr, a, h)
			if !containsKey(abbr, k) {
				abbr = append(abbr, k)
			}
		}
	}
	if len(abbr) > 0 {
		groups = append(groups, keyGroup{tier: TierAbbrAbbr, keys: abbr})
	}

	if !(away.Resolved() && home.Resolved()) && away.Key != "" && home.Key != "" {
		groups = append(groups, keyGroup{
			tier: TierAlias,
			keys: []market.Key{market.NewKey(market.KeySlug, away.ID, home.ID)},
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return tierRank[groups[i].tier] < tierRank[groups[j].tier]
	})
	return groups
}

func pairTier(a, b teams.Tier) MatchTier {
	switch {
	case a == teams.TierAlias || b == teams.TierAlias:
		return TierAlias
	case a == teams.TierExact && b == teams.TierExact:
		return TierExactExact
	case a == teams.TierAbbr && b == teams.TierAbbr:
		return TierAbbrAbbr
	default:
		return TierExactAbbr
	}
}

// eventAbbrs lists the abbreviations an event-side name can be looked up
// under. Names resolved only through an alias contribute none; an
// unresolved name that looks like a ticker code contributes itself.
func eventAbbrs(table *teams.Table, sport events.Sport, r teams.Resolution, raw string) []string {
	switch r.Tier {
	case teams.TierExact, teams.TierAbbr:
		out := []string{strings.ToUpper(r.ID)}
		if team, ok := table.Team(sport, r.ID); ok {
			for _, a := range team.Abbreviations {
				if !contains(out, a) {
					out = append(out, a)
				}
			}
		}
		return out
	case teams.TierUnresolved:
		if looksLikeCode(raw) {
			return []string{strings.ToUpper(strings.TrimSpace(raw))}
		}
	}
	return nil
}

func looksLikeCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 4 {
		return false
	}
	for _, r := range s {
		if !('A' <= r && r <= 'Z' || 'a' <= r && r <= 'z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

func (m *Matcher) collect(ix *market.Index, g keyGroup, table *teams.Table, sport events.Sport,
	away, home teams.Resolution, abA, abH []string) []*candidate {
	var out []*candidate
	seen := make(map[*market.Pair]bool)
	for _, k := range g.keys {
		for _, p := range ix.Lookup(k) {
			if seen[p] {
				continue
			}
			seen[p] = true
			a, h, ok := orient(p, table, sport, away, home, abA, abH)
			if !ok || (a == nil && h == nil) {
				continue
			}
			out = append(out, &candidate{pair: p, away: a, home: h})
		}
	}
	return out
}

// orient returns the legs for the away and home team. Team IDs decide when
// both sides resolved; otherwise one side matching by ID or abbreviation
// fixes the orientation.
func orient(p *market.Pair, table *teams.Table, sport events.Sport,
	away, home teams.Resolution, abA, abH []string) (*market.Contract, *market.Contract, bool) {
	switch {
	case p.TeamA == away.ID && p.TeamB == home.ID:
		return p.A, p.B, true
	case p.TeamA == home.ID && p.TeamB == away.ID:
		return p.B, p.A, true
	}

	is := func(teamID string, leg *market.Contract, r teams.Resolution, abbrs []string) bool {
		if teamID == r.ID {
			return true
		}
		if leg != nil && contains(abbrs, leg.TickerSuffix()) {
			return true
		}
		if contains(abbrs, strings.ToUpper(teamID)) {
			return true
		}
		if team, ok := table.Team(sport, teamID); ok {
			for _, a := range team.Abbreviations {
				if contains(abbrs, a) {
					return true
				}
			}
		}
		return false
	}

	aIsAway := is(p.TeamA, p.A, away, abA) || is(p.TeamB, p.B, home, abH)
	aIsHome := is(p.TeamA, p.A, home, abH) || is(p.TeamB, p.B, away, abA)
	switch {
	case aIsAway && !aIsHome:
		return p.A, p.B, true
	case aIsHome && !aIsAway:
		return p.B, p.A, true
	}
	return nil, nil, false
}

// validate runs every check on c and records the first hard failure.
// Temporal and price failures reject; a missing check only costs confidence.
func (m *Matcher) validate(ev Event, c *candidate) {
	c.passed = map[Validation]bool{ValidationSport: true}
	legs := make([]*market.Contract, 0, 2)
	for _, l := range []*market.Contract{c.away, c.home} {
		if l != nil {
			legs = append(legs, l)
		}
	}

	temporalOK := true
	for _, l := range legs {
		if l.CloseTime.IsZero() || ev.StartTime.IsZero() {
			temporalOK = false
			c.timeDiff = time.Duration(math.MaxInt64)
			continue
		}
		d := absDuration(l.CloseTime.Sub(ev.StartTime))
		if d > c.timeDiff {
			c.timeDiff = d
		}
		if d > m.opts.Window {
			temporalOK = false
		}
	}
	if temporalOK {
		c.passed[ValidationTemporal] = true
	} else {
		c.fail(ReasonDateWindow)
	}

	one := decimal.NewFromInt(1)
	compOK := true
	for _, l := range legs {
		if !inUnit(l.YesPrice) || !inUnit(l.NoPrice) {
			compOK = false
		}
		if l.YesPrice.Add(l.NoPrice).Sub(one).Abs().GreaterThan(m.opts.Tolerance) {
			compOK = false
		}
	}
	if compOK {
		c.passed[ValidationComplementarity] = true
	} else {
		c.fail(ReasonPriceMismatch)
	}

	if c.away != nil && c.home != nil {
		if m.within(c.away.YesPrice, c.home.NoPrice) && m.within(c.home.YesPrice, c.away.NoPrice) {
			c.passed[ValidationCrossPair] = true
		} else {
			c.fail(ReasonPriceMismatch)
		}
	}

	if c.pair.Hinted {
		c.passed[ValidationOrientation] = true
	}

	// A single leg prices the other side with its NO price.
	switch {
	case c.away != nil:
		c.awayPrice = c.away.YesPrice
	case c.home != nil:
		c.awayPrice = c.home.NoPrice
	}
	switch {
	case c.home != nil:
		c.homePrice = c.home.YesPrice
	case c.away != nil:
		c.homePrice = c.away.NoPrice
	}
}

func (c *candidate) fail(r Reason) {
	if c.failure == ReasonNone {
		c.failure = r
	}
}

// inUnit reports whether a price is a probability in [0,1].
func inUnit(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(1))
}

func (m *Matcher) within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(m.opts.Tolerance)
}

func (m *Matcher) decide(res *Result, tier MatchTier, cands []*candidate) {
	var survivors, failed []*candidate
	for _, c := range cands {
		if c.failure == ReasonNone {
			survivors = append(survivors, c)
		} else {
			failed = append(failed, c)
		}
	}

	if len(survivors) == 0 {
		sort.SliceStable(failed, func(i, j int) bool {
			if failed[i].timeDiff != failed[j].timeDiff {
				return failed[i].timeDiff < failed[j].timeDiff
			}
			return failed[i].pair.EventKey < failed[j].pair.EventKey
		})
		best := failed[0]
		m.reject(res, tier, best, best.failure, cands)
		return
	}

	ambiguous := len(survivors) > 1
	for _, c := range survivors {
		c.confidence = m.opts.Weights.score(tier, c.passed, ambiguous)
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.pair.Volume != b.pair.Volume {
			return a.pair.Volume > b.pair.Volume
		}
		if a.timeDiff != b.timeDiff {
			return a.timeDiff < b.timeDiff
		}
		return a.pair.EventKey < b.pair.EventKey
	})
	best := survivors[0]

	switch {
	case ambiguous:
		res.Status = StatusAmbiguous
		res.Reason = ReasonMultipleCandidates
		res.Alternatives = len(survivors) - 1
	case best.confidence < m.opts.Weights.ConfirmThreshold:
		m.reject(res, tier, best, ReasonLowConfidence, cands)
		return
	case !best.passed[ValidationOrientation]:
		// Cross-pair prices are symmetric in the two legs, so they cannot
		// tell a swapped pair apart.
		m.reject(res, tier, best, ReasonOrientationUnknown, cands)
		return
	default:
		res.Status = StatusConfirmed
	}

	res.Confidence = best.confidence
	res.Validations = passedList(best.passed)
	res.Pair = best.pair
	if best.away != nil {
		res.TickerAway = best.away.Ticker
	}
	if best.home != nil {
		res.TickerHome = best.home.Ticker
	}
	res.AwayPrice = decimal.NewNullDecimal(best.awayPrice)
	res.HomePrice = decimal.NewNullDecimal(best.homePrice)
	if fa, fh, ok := odds.RemoveVig2(best.awayPrice, best.homePrice); ok {
		res.FairAway = decimal.NewNullDecimal(fa)
		res.FairHome = decimal.NewNullDecimal(fh)
	}
}

func (m *Matcher) reject(res *Result, tier MatchTier, best *candidate, reason Reason, cands []*candidate) {
	res.Status = StatusRejected
	res.Reason = reason
	res.Confidence = m.opts.Weights.score(tier, best.passed, false)
	res.Validations = passedList(best.passed)
	res.Pair = best.pair

	var tickers []string
	for _, c := range cands {
		for _, l := range []*market.Contract{c.away, c.home} {
			if l != nil && !contains(tickers, l.Ticker) {
				tickers = append(tickers, l.Ticker)
			}
		}
	}
	sort.Strings(tickers)
	res.Rejected = tickers
}

func passedList(passed map[Validation]bool) []Validation {
	out := make([]Validation, 0, len(passed))
	for _, v := range validationOrder {
		if passed[v] {
			out = append(out, v)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsKey(list []market.Key, k market.Key) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}
