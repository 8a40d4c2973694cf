package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/events"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusSettled Status = "settled"
	StatusExpired Status = "expired"
)

// Contract is one binary market row as read from the market store.
// Sport may be empty: upstream tagging is not reliable.
type Contract struct {
	Ticker      string
	EventTicker string
	Title       string
	YesSubTitle string
	YesPrice    decimal.Decimal
	NoPrice     decimal.Decimal
	CloseTime   time.Time
	Sport       events.Sport
	Status      Status
	Volume      int64
	Raw         map[string]any
}

// GroupKey returns the event a contract belongs to: the explicit event
// ticker when present, otherwise the ticker minus its last dash segment.
func (c *Contract) GroupKey() string {
	if c.EventTicker != "" {
		return strings.ToUpper(c.EventTicker)
	}
	t := strings.ToUpper(c.Ticker)
	if i := strings.LastIndex(t, "-"); i > 0 {
		return t[:i]
	}
	return t
}

// TickerSuffix is the outcome segment of the ticker ("KXNFLGAME-25NOV19BUFHOU-BUF"
// -> "BUF"). It is a naming convention, only ever used as a hint.
func (c *Contract) TickerSuffix() string {
	t := strings.ToUpper(c.Ticker)
	if c.EventTicker != "" {
		prefix := strings.ToUpper(c.EventTicker) + "-"
		if strings.HasPrefix(t, prefix) {
			return t[len(prefix):]
		}
	}
	if i := strings.LastIndex(t, "-"); i >= 0 && i < len(t)-1 {
		return t[i+1:]
	}
	return ""
}

// IsDraw reports whether the contract is the tie leg of a three-way event.
func (c *Contract) IsDraw() bool {
	s := c.TickerSuffix()
	return s == "TIE" || s == "DRAW"
}

// Active treats an empty status as active; the reader already filtered.
func (c *Contract) Active() bool {
	return c.Status == "" || c.Status == StatusActive
}
