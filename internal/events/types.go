package events

import "time"

// IndexRebuiltEvent is published after a new index generation is swapped in.
type IndexRebuiltEvent struct {
	Generation string        `json:"generation"`
	Contracts  int           `json:"contracts"`
	Pairs      int           `json:"pairs"`
	Unindexed  int           `json:"unindexed"`
	BuildTime  time.Duration `json:"build_time_ns"`
}

// IndexRebuildFailedEvent is published when a store read or build fails.
// ServingStale is true when a last-good index is still being served.
type IndexRebuildFailedEvent struct {
	Error        string    `json:"error"`
	ServingStale bool      `json:"serving_stale"`
	RetryAfter   time.Time `json:"retry_after"`
}

// IndexInvalidatedEvent is published on explicit invalidation.
type IndexInvalidatedEvent struct {
	Source string `json:"source"` // "http", "redis", "aliases"
}

// AliasesReloadedEvent is published after the alias table is swapped.
type AliasesReloadedEvent struct {
	Version string `json:"version"`
	Teams   int    `json:"teams"`
	Issues  int    `json:"issues"`
}

// MatchResolvedEvent carries the caller-facing fields of one match.
type MatchResolvedEvent struct {
	AwayTeam   string  `json:"away_team"`
	HomeTeam   string  `json:"home_team"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	TickerAway string  `json:"ticker_away,omitempty"`
	TickerHome string  `json:"ticker_home,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}
