package events

import (
	"fmt"
	"strings"
	"time"
)

type Sport string

const (
	SportNFL   Sport = "nfl"
	SportNCAAF Sport = "ncaaf"
	SportNBA   Sport = "nba"
	SportNCAAB Sport = "ncaab"
	SportNHL   Sport = "nhl"
	SportMLB   Sport = "mlb"
)

var knownSports = map[Sport]bool{
	SportNFL: true, SportNCAAF: true, SportNBA: true,
	SportNCAAB: true, SportNHL: true, SportMLB: true,
}

// ParseSport lower-cases and validates a sport key from a feed or config.
func ParseSport(s string) (Sport, error) {
	sp := Sport(strings.ToLower(strings.TrimSpace(s)))
	if !knownSports[sp] {
		return "", fmt.Errorf("unknown sport %q", s)
	}
	return sp, nil
}

// ParseSports parses a comma-separated list, skipping unknown entries.
func ParseSports(csv string) []Sport {
	var out []Sport
	for _, part := range strings.Split(csv, ",") {
		if sp, err := ParseSport(part); err == nil {
			out = append(out, sp)
		}
	}
	return out
}

func (s Sport) Valid() bool { return knownSports[s] }

// Event is the envelope that flows through the event bus.
// Index lifecycle changes and resolved matches are wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	Sport     Sport
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// Index lifecycle
	EventIndexRebuilt       EventType = "index_rebuilt"
	EventIndexRebuildFailed EventType = "index_rebuild_failed"
	EventIndexInvalidated   EventType = "index_invalidated"

	// Alias table
	EventAliasesReloaded EventType = "aliases_reloaded"

	// Matcher output
	EventMatchResolved EventType = "match_resolved"
)
