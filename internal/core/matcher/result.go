package matcher

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/core/market"
)

// Result is the outcome of matching one event. Tickers and prices are set
// only for CONFIRMED and AMBIGUOUS results; a REJECTED result lists the
// tickers it turned down in Rejected.
type Result struct {
	Event        Event
	Status       Status
	Reason       Reason
	Tier         MatchTier
	Confidence   float64
	Validations  []Validation
	TickerAway   string
	TickerHome   string
	AwayPrice    decimal.NullDecimal
	HomePrice    decimal.NullDecimal
	FairAway     decimal.NullDecimal
	FairHome     decimal.NullDecimal
	Alternatives int
	Rejected     []string
	Stale        bool
	Generation   string

	Pair *market.Pair
}

// Matched reports whether the result names a contract pair.
func (r Result) Matched() bool {
	return r.Status == StatusConfirmed || r.Status == StatusAmbiguous
}

type resultJSON struct {
	Event        Event               `json:"event"`
	TickerAway   *string             `json:"ticker_away"`
	TickerHome   *string             `json:"ticker_home"`
	AwayPrice    decimal.NullDecimal `json:"away_price"`
	HomePrice    decimal.NullDecimal `json:"home_price"`
	Confidence   float64             `json:"confidence"`
	Status       Status              `json:"status"`
	Reason       *string             `json:"reason"`
	Tier         MatchTier           `json:"tier,omitempty"`
	Validations  []Validation        `json:"validations"`
	FairAway     decimal.NullDecimal `json:"fair_away"`
	FairHome     decimal.NullDecimal `json:"fair_home"`
	Alternatives int                 `json:"alternatives"`
	Rejected     []string            `json:"rejected_tickers,omitempty"`
	Stale        bool                `json:"stale"`
	Generation   string              `json:"generation,omitempty"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r Result) MarshalJSON() ([]byte, error) {
	validations := r.Validations
	if validations == nil {
		validations = []Validation{}
	}
	return json.Marshal(resultJSON{
		Event:        r.Event,
		TickerAway:   strPtr(r.TickerAway),
		TickerHome:   strPtr(r.TickerHome),
		AwayPrice:    r.AwayPrice,
		HomePrice:    r.HomePrice,
		Confidence:   r.Confidence,
		Status:       r.Status,
		Reason:       strPtr(string(r.Reason)),
		Tier:         r.Tier,
		Validations:  validations,
		FairAway:     r.FairAway,
		FairHome:     r.FairHome,
		Alternatives: r.Alternatives,
		Rejected:     r.Rejected,
		Stale:        r.Stale,
		Generation:   r.Generation,
	})
}
