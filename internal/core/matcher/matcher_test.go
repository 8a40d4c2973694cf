package matcher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
)

var kickoff = time.Date(2025, 11, 19, 19, 0, 0, 0, time.UTC)

type stubIndex struct {
	ix    *market.Index
	err   error
	stale bool
	gets  int
}

func (s *stubIndex) Get(_ context.Context, _ events.Sport) (indexcache.Snapshot, error) {
	s.gets++
	if s.err != nil {
		return indexcache.Snapshot{}, s.err
	}
	return indexcache.Snapshot{Index: s.ix, Stale: s.stale}, nil
}

func leg(ticker, title string, yes, no string, close time.Time) market.Contract {
	return market.Contract{
		Ticker:    ticker,
		Title:     title,
		YesPrice:  decimal.RequireFromString(yes),
		NoPrice:   decimal.RequireFromString(no),
		CloseTime: close,
		Status:    market.StatusActive,
		Volume:    100,
	}
}

func newTestMatcher(sport events.Sport, rows ...market.Contract) (*Matcher, *stubIndex) {
	norm := teams.NewNormalizer(teams.DefaultTable())
	src := &stubIndex{ix: market.Build(rows, sport, norm.Table())}
	return New(src, norm, Options{}), src
}

func nflEvent(away, home string) Event {
	return Event{AwayTeam: away, HomeTeam: home, StartTime: kickoff, Sport: events.SportNFL}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComplementaryPairConfirms(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status != StatusConfirmed {
		t.Fatalf("status = %s (%s), want CONFIRMED", r.Status, r.Reason)
	}
	if r.TickerAway != "X-BUF" || r.TickerHome != "X-HOU" {
		t.Errorf("tickers = %s/%s", r.TickerAway, r.TickerHome)
	}
	if !r.AwayPrice.Decimal.Equal(dec("0.42")) || !r.HomePrice.Decimal.Equal(dec("0.58")) {
		t.Errorf("prices = %s/%s, want 0.42/0.58", r.AwayPrice.Decimal, r.HomePrice.Decimal)
	}
	if r.Tier != TierExactExact || r.Confidence != 1 {
		t.Errorf("tier/confidence = %s/%v", r.Tier, r.Confidence)
	}
	if len(r.Validations) != len(validationOrder) {
		t.Errorf("validations = %v, want all", r.Validations)
	}
	if !r.FairAway.Valid || !r.FairAway.Decimal.Add(r.FairHome.Decimal).Equal(decimal.NewFromInt(1)) {
		t.Errorf("fair = %v/%v", r.FairAway, r.FairHome)
	}
}

func TestReversedEventOrientationStillMatches(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Houston Texans", "Buffalo Bills"))
	if r.Status != StatusConfirmed {
		t.Fatalf("status = %s (%s)", r.Status, r.Reason)
	}
	if r.TickerAway != "X-HOU" || !r.AwayPrice.Decimal.Equal(dec("0.58")) {
		t.Errorf("away = %s @ %s, want X-HOU @ 0.58", r.TickerAway, r.AwayPrice.Decimal)
	}
}

func TestContractOutsideDateWindowIsRejected(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", time.Date(2025, 11, 24, 0, 0, 0, 0, time.UTC)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status == StatusConfirmed {
		t.Fatal("contract 5 days out was confirmed")
	}
	if r.Status != StatusRejected || r.Reason != ReasonDateWindow {
		t.Errorf("result = %s/%s, want REJECTED/date_window", r.Status, r.Reason)
	}
	if r.TickerAway != "" || r.AwayPrice.Valid {
		t.Errorf("rejected result exposes ticker %q price %v", r.TickerAway, r.AwayPrice)
	}
	if len(r.Rejected) != 1 || r.Rejected[0] != "X-BUF" {
		t.Errorf("rejected = %v", r.Rejected)
	}
}

func TestNonComplementaryPairIsRejected(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("E-BUF", "Buffalo at Houston", "0.50", "0.50", kickoff.Add(3*time.Hour)),
		leg("E-HOU", "Buffalo at Houston", "0.30", "0.70", kickoff.Add(3*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status != StatusRejected || r.Reason != ReasonPriceMismatch {
		t.Errorf("result = %s/%s, want REJECTED/price_mismatch", r.Status, r.Reason)
	}
}

func TestPositionalLegsAreNotConfirmed(t *testing.T) {
	// G-1 is really Houston; nothing on either leg says which team it is.
	m, _ := newTestMatcher(events.SportNFL,
		leg("G-1", "Buffalo at Houston", "0.58", "0.42", kickoff.Add(3*time.Hour)),
		leg("G-2", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(3*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status == StatusConfirmed {
		t.Fatalf("unoriented pair confirmed: away=%s home=%s", r.TickerAway, r.TickerHome)
	}
	if r.Status != StatusRejected || r.Reason != ReasonOrientationUnknown {
		t.Errorf("result = %s/%s, want REJECTED/orientation_unknown", r.Status, r.Reason)
	}
	if r.TickerAway != "" || r.AwayPrice.Valid {
		t.Errorf("rejected result exposes ticker %q price %v", r.TickerAway, r.AwayPrice)
	}
}

func TestOutOfRangePricesAreRejected(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "1.30", "-0.30", kickoff.Add(3*time.Hour)),
		leg("X-HOU", "", "-0.30", "1.30", kickoff.Add(3*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status != StatusRejected || r.Reason != ReasonPriceMismatch {
		t.Errorf("result = %s/%s, want REJECTED/price_mismatch", r.Status, r.Reason)
	}
	for _, v := range r.Validations {
		if v == ValidationComplementarity {
			t.Error("complementarity recorded as passed for prices outside [0,1]")
		}
	}
}

func TestStaleWeekIsNeverSelected(t *testing.T) {
	lastWeek := kickoff.Add(-7 * 24 * time.Hour)
	m, _ := newTestMatcher(events.SportNFL,
		leg("OLD-BUF", "Buffalo at Houston", "0.60", "0.40", lastWeek),
		leg("OLD-HOU", "", "0.40", "0.60", lastWeek),
		leg("NEW-BUF", "Buffalo at Houston", "0.45", "0.55", kickoff.Add(3*time.Hour)),
		leg("NEW-HOU", "", "0.55", "0.45", kickoff.Add(3*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status != StatusConfirmed {
		t.Fatalf("status = %s (%s)", r.Status, r.Reason)
	}
	if r.TickerAway != "NEW-BUF" || r.TickerHome != "NEW-HOU" {
		t.Errorf("selected %s/%s, want the current week's pair", r.TickerAway, r.TickerHome)
	}
}

func TestTwoValidPairsAreAmbiguous(t *testing.T) {
	g1a := leg("G1-BUF", "Buffalo at Houston", "0.45", "0.55", kickoff.Add(3*time.Hour))
	g1b := leg("G1-HOU", "", "0.55", "0.45", kickoff.Add(3*time.Hour))
	g2a := leg("G2-BUF", "Buffalo at Houston", "0.48", "0.52", kickoff.Add(5*time.Hour))
	g2b := leg("G2-HOU", "", "0.52", "0.48", kickoff.Add(5*time.Hour))
	g2a.Volume, g2b.Volume = 5000, 5000

	m, _ := newTestMatcher(events.SportNFL, g1a, g1b, g2a, g2b)
	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))

	if r.Status != StatusAmbiguous || r.Alternatives != 1 {
		t.Fatalf("result = %s alternatives=%d, want AMBIGUOUS with 1 alternative", r.Status, r.Alternatives)
	}
	if r.TickerAway != "G2-BUF" {
		t.Errorf("best guess = %s, want the higher-volume G2-BUF", r.TickerAway)
	}
	if r.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 after ambiguity penalty", r.Confidence)
	}
}

func TestTierFollowsNameResolution(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)

	tests := []struct {
		away, home string
		tier       MatchTier
		confidence float64
		status     Status
	}{
		{"Buffalo Bills", "HOU", TierExactAbbr, 0.94, StatusConfirmed},
		{"BUF", "HOU", TierAbbrAbbr, 0.88, StatusConfirmed},
		{"Buffalo", "Houston", TierAlias, 0.8, StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.away+"/"+tt.home, func(t *testing.T) {
			r := m.Match(context.Background(), nflEvent(tt.away, tt.home))
			if r.Tier != tt.tier || r.Confidence != tt.confidence || r.Status != tt.status {
				t.Errorf("got %s/%v/%s, want %s/%v/%s", r.Tier, r.Confidence, r.Status, tt.tier, tt.confidence, tt.status)
			}
		})
	}
}

func TestUnhintedSingleLegIsLowConfidence(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("Z-123", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo", "Houston"))
	if r.Status != StatusRejected || r.Reason != ReasonLowConfidence {
		t.Fatalf("result = %s/%s, want REJECTED/low_confidence", r.Status, r.Reason)
	}
	for _, v := range r.Validations {
		if v == ValidationCrossPair || v == ValidationOrientation {
			t.Errorf("validation %s recorded as passed", v)
		}
	}
}

func TestSingleLegPricesOtherSideFromNo(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-HOU", "Buffalo at Houston", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if r.Status != StatusConfirmed {
		t.Fatalf("status = %s (%s), confidence %v", r.Status, r.Reason, r.Confidence)
	}
	if r.TickerAway != "" || r.TickerHome != "X-HOU" {
		t.Errorf("tickers = %q/%q", r.TickerAway, r.TickerHome)
	}
	if !r.AwayPrice.Decimal.Equal(dec("0.42")) || !r.HomePrice.Decimal.Equal(dec("0.58")) {
		t.Errorf("prices = %s/%s", r.AwayPrice.Decimal, r.HomePrice.Decimal)
	}
}

func TestUnknownTeamsMatchBySlug(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("S-AAA", "Springfield Isotopes at Shelbyville Sharks", "0.40", "0.60", kickoff.Add(2*time.Hour)),
		leg("S-BBB", "Springfield Isotopes at Shelbyville Sharks", "0.60", "0.40", kickoff.Add(2*time.Hour)),
	)

	r := m.Match(context.Background(), nflEvent("Springfield Isotopes", "Shelbyville Sharks"))
	if r.Tier != TierAlias {
		t.Fatalf("tier = %s, want ALIAS", r.Tier)
	}
	// Positional legs with no hint cannot be confirmed.
	if r.Status != StatusRejected || r.Reason != ReasonLowConfidence {
		t.Errorf("result = %s/%s", r.Status, r.Reason)
	}
}

func TestUnmatchedReasons(t *testing.T) {
	m, src := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
	)
	ctx := context.Background()

	if r := m.Match(ctx, nflEvent("Miami Dolphins", "New England Patriots")); r.Status != StatusUnmatched || r.Reason != ReasonNoCandidate {
		t.Errorf("no candidate = %s/%s", r.Status, r.Reason)
	}

	ev := nflEvent("Buffalo Bills", "Houston Texans")
	ev.Sport = "curling"
	if r := m.Match(ctx, ev); r.Reason != ReasonUnsupportedSport {
		t.Errorf("unsupported sport = %s/%s", r.Status, r.Reason)
	}

	src.err = indexcache.ErrUnavailable
	if r := m.Match(ctx, nflEvent("Buffalo Bills", "Houston Texans")); r.Status != StatusUnmatched || r.Reason != ReasonResourceUnavailable {
		t.Errorf("unavailable = %s/%s", r.Status, r.Reason)
	}
}

func TestStaleFlagIsCarried(t *testing.T) {
	m, src := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)
	src.stale = true
	r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
	if !r.Stale || r.Status != StatusConfirmed {
		t.Errorf("stale=%v status=%s", r.Stale, r.Status)
	}
}

func TestMatchIsIdempotent(t *testing.T) {
	m, _ := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
		leg("Y-BUF", "Buffalo at Houston", "0.44", "0.56", kickoff.Add(5*time.Hour)),
		leg("Y-HOU", "", "0.56", "0.44", kickoff.Add(5*time.Hour)),
	)
	ev := nflEvent("Buffalo Bills", "Houston Texans")

	first, err := json.Marshal(m.Match(context.Background(), ev))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, _ := json.Marshal(m.Match(context.Background(), ev))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestConfirmedPairsAreComplementary(t *testing.T) {
	eps := dec("0.02")
	prices := [][4]string{
		{"0.42", "0.58", "0.58", "0.42"},
		{"0.50", "0.51", "0.49", "0.50"},
		{"0.30", "0.70", "0.69", "0.31"},
		{"0.50", "0.50", "0.30", "0.70"},
		{"0.40", "0.40", "0.60", "0.60"},
	}
	for _, p := range prices {
		m, _ := newTestMatcher(events.SportNFL,
			leg("P-BUF", "Buffalo at Houston", p[0], p[1], kickoff.Add(time.Hour)),
			leg("P-HOU", "", p[2], p[3], kickoff.Add(time.Hour)),
		)
		r := m.Match(context.Background(), nflEvent("Buffalo Bills", "Houston Texans"))
		if r.Status != StatusConfirmed {
			continue
		}
		for _, c := range r.Pair.Contracts() {
			if c.YesPrice.Add(c.NoPrice).Sub(decimal.NewFromInt(1)).Abs().GreaterThan(eps) {
				t.Errorf("confirmed %s with yes+no = %s", c.Ticker, c.YesPrice.Add(c.NoPrice))
			}
		}
	}
}

func TestMatchBatchReadsEachSportOnce(t *testing.T) {
	m, src := newTestMatcher(events.SportNFL,
		leg("X-BUF", "Buffalo at Houston", "0.42", "0.58", kickoff.Add(4*time.Hour)),
		leg("X-HOU", "", "0.58", "0.42", kickoff.Add(4*time.Hour)),
	)
	evs := []Event{
		nflEvent("Buffalo Bills", "Houston Texans"),
		nflEvent("Miami Dolphins", "New England Patriots"),
		nflEvent("Houston Texans", "Buffalo Bills"),
	}
	results := m.MatchBatch(context.Background(), evs)
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if src.gets != 1 {
		t.Errorf("index reads = %d, want 1", src.gets)
	}
	if results[0].Status != StatusConfirmed || results[1].Status != StatusUnmatched || results[2].TickerAway != "X-HOU" {
		t.Errorf("statuses = %s %s %s", results[0].Status, results[1].Status, results[2].Status)
	}
}

func TestTransitionTable(t *testing.T) {
	sm := newMachine()
	if err := sm.to(StatusConfirmed); err == nil {
		t.Error("UNMATCHED -> CONFIRMED skipped validation")
	}
	for _, s := range []Status{StatusCandidateFound, StatusValidated, StatusRejected} {
		if err := sm.to(s); err != nil {
			t.Fatalf("to(%s): %v", s, err)
		}
	}
	if err := sm.to(StatusConfirmed); err == nil {
		t.Error("transition out of a terminal state allowed")
	}
	if !StatusRejected.Terminal() || StatusValidated.Terminal() {
		t.Error("Terminal() wrong")
	}
}

func TestEventJSON(t *testing.T) {
	var ev Event
	in := `{"away_team":"Buffalo Bills","home_team":"Houston Texans","start_time":"2025-11-19T19:00Z","sport":"NFL"}`
	if err := json.Unmarshal([]byte(in), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !ev.StartTime.Equal(kickoff) || ev.Sport != events.SportNFL {
		t.Errorf("event = %+v", ev)
	}

	if err := json.Unmarshal([]byte(`{"away_team":"A","home_team":"B","start_time":"soon"}`), &ev); err == nil {
		t.Error("expected error for bad start_time")
	}
}

func TestResultJSONUsesNullsWhenUnmatched(t *testing.T) {
	r := unmatched(nflEvent("Buffalo Bills", "Houston Texans"), ReasonNoCandidate)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"ticker_away":null`, `"away_price":null`, `"status":"UNMATCHED"`, `"reason":"no_candidate"`, `"start_time":"2025-11-19T19:00:00Z"`} {
		if !strings.Contains(s, want) {
			t.Errorf("json missing %s: %s", want, s)
		}
	}
}

func TestWeightsFromConfigOverlaysDefaults(t *testing.T) {
	var c config.ConfidenceWeights
	c.Tier.Alias = 0.9
	c.ConfirmThreshold = 0.95

	w := WeightsFromConfig(c)
	if w.TierScore[TierAlias] != 0.9 || w.ConfirmThreshold != 0.95 {
		t.Errorf("overrides not applied: %+v", w)
	}
	if w.TierScore[TierExactExact] != 1 || w.Temporal != 0.2 {
		t.Errorf("defaults lost: %+v", w)
	}

	all := map[Validation]bool{
		ValidationTemporal: true, ValidationComplementarity: true,
		ValidationCrossPair: true, ValidationOrientation: true,
	}
	if got := DefaultWeights().score(TierExactExact, all, false); got != 1 {
		t.Errorf("full score = %v, want 1", got)
	}
	if got := DefaultWeights().score(TierAlias, nil, true); got != 0 {
		t.Errorf("floor = %v, want 0", got)
	}
}
