package teams

import (
	"sync"
	"testing"

	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/events"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Buffalo   Bills ", "buffalo bills"},
		{"St. Louis Blues", "st louis blues"},
		{"Atlético Madrid", "atletico madrid"},
		{"Nott'm Forest", "nottm forest"},
		{"Texas A&M", "texas a&m"},
		{"Miami (FL)", "miami fl"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeKey(tt.in); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultTableHasNoIssues(t *testing.T) {
	tbl := DefaultTable()
	if issues := tbl.Issues(); len(issues) != 0 {
		t.Fatalf("default table issues = %v, want none", issues)
	}
	if !tbl.HasSport(events.SportNFL) || !tbl.HasSport(events.SportNBA) {
		t.Fatal("default table missing nfl or nba")
	}
	if got := tbl.TeamCount(); got != 62 {
		t.Errorf("TeamCount() = %d, want 62", got)
	}
}

func TestNormalizeTiers(t *testing.T) {
	n := NewNormalizer(DefaultTable())

	tests := []struct {
		raw      string
		sport    events.Sport
		wantID   string
		wantTier Tier
	}{
		{"Buffalo Bills", events.SportNFL, "BUF", TierExact},
		{"HOUSTON TEXANS", events.SportNFL, "HOU", TierExact},
		{"BUF", events.SportNFL, "BUF", TierAbbr},
		{"gnb", events.SportNFL, "GB", TierAbbr},
		{"Houston", events.SportNFL, "HOU", TierAlias},
		{"Texans", events.SportNFL, "HOU", TierAlias},
		{"NY Giants", events.SportNFL, "NYG", TierAlias},
		{"Houston Rockets", events.SportNBA, "HOU", TierExact},
		{"Houston Texanz", events.SportNFL, "HOU", TierAlias},
		{"LA Chargers", events.SportNFL, "LAC", TierAlias},
		{"New York Football Giants", events.SportNFL, "NYG", TierAlias},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := n.Normalize(tt.raw, tt.sport)
			if got.ID != tt.wantID || got.Tier != tt.wantTier {
				t.Errorf("Normalize(%q) = %s/%s, want %s/%s", tt.raw, got.ID, got.Tier, tt.wantID, tt.wantTier)
			}
		})
	}
}

func TestNormalizeUnresolvedReturnsSlug(t *testing.T) {
	n := NewNormalizer(DefaultTable())

	got := n.Normalize("Springfield Isotopes", events.SportNFL)
	if got.Resolved() {
		t.Fatalf("expected unresolved, got %s/%s", got.ID, got.Tier)
	}
	if got.ID != "springfield-isotopes" {
		t.Errorf("slug = %q, want springfield-isotopes", got.ID)
	}

	// Two partial hits on different teams must not pick either.
	got = n.Normalize("Buffalo at Houston", events.SportNFL)
	if got.Resolved() {
		t.Errorf("Normalize(title) resolved to %s, want unresolved", got.ID)
	}

	// Sport namespaces are separate.
	got = n.Normalize("Buffalo Bills", events.SportNBA)
	if got.Resolved() {
		t.Errorf("nfl name resolved in nba namespace: %s", got.ID)
	}
}

func TestAmbiguousAliasIsReported(t *testing.T) {
	f := config.AliasFile{
		Version: "test",
		Sports: map[string][]config.TeamEntry{
			"nfl": {
				{ID: "NYG", Name: "New York Giants", Abbreviations: []string{"NYG"}, Aliases: []string{"NY"}},
				{ID: "NYJ", Name: "New York Jets", Abbreviations: []string{"NYJ"}, Aliases: []string{"NY"}},
			},
		},
	}
	tbl, err := NewTable(f)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	issues := tbl.Issues()
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want exactly one", issues)
	}
	if issues[0].Alias != "ny" || len(issues[0].TeamIDs) != 2 {
		t.Errorf("issue = %+v, want alias ny claimed by NYG and NYJ", issues[0])
	}

	got := NewNormalizer(tbl).Normalize("NY", events.SportNFL)
	if got.Resolved() || !got.Ambiguous {
		t.Errorf("Normalize(NY) = %s/%s ambiguous=%v, want unresolved and ambiguous", got.ID, got.Tier, got.Ambiguous)
	}
}

func TestNewTableStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		file config.AliasFile
	}{
		{"unknown sport", config.AliasFile{Sports: map[string][]config.TeamEntry{
			"curling": {{ID: "X", Name: "X"}},
		}}},
		{"missing name", config.AliasFile{Sports: map[string][]config.TeamEntry{
			"nfl": {{ID: "X"}},
		}}},
		{"duplicate id", config.AliasFile{Sports: map[string][]config.TeamEntry{
			"nfl": {{ID: "X", Name: "One"}, {ID: "X", Name: "Two"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.file); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSwapIsVisibleToConcurrentReaders(t *testing.T) {
	n := NewNormalizer(DefaultTable())
	replacement, err := NewTable(config.AliasFile{
		Version: "v2",
		Sports: map[string][]config.TeamEntry{
			"nfl": {{ID: "BUF", Name: "Buffalo Bills", Aliases: []string{"Bills Mafia"}}},
		},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if r := n.Normalize("Buffalo Bills", events.SportNFL); r.ID != "BUF" {
					t.Errorf("reader saw %s", r.ID)
					return
				}
			}
		}()
	}
	prev := n.Swap(replacement)
	wg.Wait()

	if prev.Version() != "builtin-2025.11" {
		t.Errorf("previous version = %q", prev.Version())
	}
	if r := n.Normalize("bills mafia", events.SportNFL); r.ID != "BUF" || r.Tier != TierAlias {
		t.Errorf("after swap Normalize = %s/%s", r.ID, r.Tier)
	}
}
