package teams

import (
	"fmt"
	"sync"

	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// Invalidator drops indexes built against an older table.
type Invalidator interface {
	InvalidateAll(source string)
}

// Reloader re-reads the alias file and swaps it into a Normalizer. A file
// that fails to load leaves the current table in place.
type Reloader struct {
	mu   sync.Mutex
	n    *Normalizer
	path string
	inv  Invalidator
	bus  *events.Bus
}

// NewReloader reloads from path. An empty path reloads the built-in table.
func NewReloader(n *Normalizer, path string, inv Invalidator, bus *events.Bus) *Reloader {
	return &Reloader{n: n, path: path, inv: inv, bus: bus}
}

// Load builds a table from path, or the built-in table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	f, err := config.LoadAliasFile(path)
	if err != nil {
		return nil, err
	}
	return NewTable(f)
}

// Reload swaps in a freshly loaded table and invalidates every index.
func (r *Reloader) Reload() (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := Load(r.path)
	if err != nil {
		return nil, fmt.Errorf("reload aliases: %w", err)
	}
	r.n.Swap(t)
	Report(t)

	if r.inv != nil {
		r.inv.InvalidateAll("aliases")
	}
	r.bus.Emit(events.EventAliasesReloaded, "", events.AliasesReloadedEvent{
		Version: t.Version(),
		Teams:   t.TeamCount(),
		Issues:  len(t.Issues()),
	})
	return t, nil
}

// Report logs a table's collisions and updates the issues gauge.
func Report(t *Table) {
	issues := t.Issues()
	telemetry.Metrics.AliasIssues.Set(float64(len(issues)))
	for _, is := range issues {
		telemetry.Warnf("teams: %v", is)
	}
	telemetry.Infof("teams: alias table %q loaded, %d teams, %d issues", t.Version(), t.TeamCount(), len(issues))
}
