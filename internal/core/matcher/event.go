package matcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/events"
)

// Event is one live-feed game to be matched. It is never mutated.
type Event struct {
	AwayTeam  string
	HomeTeam  string
	StartTime time.Time
	Sport     events.Sport
}

type eventJSON struct {
	AwayTeam  string `json:"away_team"`
	HomeTeam  string `json:"home_team"`
	StartTime string `json:"start_time"`
	Sport     string `json:"sport"`
}

// UnmarshalJSON accepts ISO-8601 start times with or without seconds.
// Unknown sports are kept so the matcher can report them.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.AwayTeam) == "" || strings.TrimSpace(raw.HomeTeam) == "" {
		return fmt.Errorf("event: away_team and home_team are required")
	}
	start, err := market.ParseTime(raw.StartTime)
	if err != nil {
		return fmt.Errorf("event: start_time: %w", err)
	}
	*e = Event{
		AwayTeam:  raw.AwayTeam,
		HomeTeam:  raw.HomeTeam,
		StartTime: start,
		Sport:     events.Sport(strings.ToLower(strings.TrimSpace(raw.Sport))),
	}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		AwayTeam:  e.AwayTeam,
		HomeTeam:  e.HomeTeam,
		StartTime: e.StartTime.UTC().Format(time.RFC3339),
		Sport:     string(e.Sport),
	})
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s at %s %s", e.Sport, e.AwayTeam, e.HomeTeam, e.StartTime.Format("2006-01-02T15:04Z"))
}
