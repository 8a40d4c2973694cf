package indexcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
)

type stubLoader struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{} // when set, LoadActive blocks until it is closed
	entered chan struct{}
}

func (l *stubLoader) LoadActive(ctx context.Context, sport events.Sport) ([]market.Contract, error) {
	l.mu.Lock()
	l.calls++
	gate, entered, err := l.gate, l.entered, l.err
	l.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []market.Contract{
		{Ticker: "X-BUF", Title: "Buffalo at Houston", YesPrice: decimal.RequireFromString("0.55"),
			NoPrice: decimal.RequireFromString("0.45"), Status: market.StatusActive},
		{Ticker: "X-HOU", YesPrice: decimal.RequireFromString("0.45"),
			NoPrice: decimal.RequireFromString("0.55"), Status: market.StatusActive},
	}, nil
}

func (l *stubLoader) set(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *stubLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(loader Loader, opts Options) (*Manager, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)}
	if opts.TTL == 0 {
		opts.TTL = 5 * time.Minute
	}
	opts.Now = clk.Now
	return NewManager(loader, teams.NewNormalizer(teams.DefaultTable()), opts), clk
}

func TestGetBuildsOnceAndServesFromCache(t *testing.T) {
	loader := &stubLoader{}
	m, _ := newTestManager(loader, Options{})
	ctx := context.Background()

	snap, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Stale || snap.Index == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := snap.Index.Lookup(market.NewKey(market.KeyCanonical, "BUF", "HOU")); len(got) != 1 {
		t.Errorf("lookup = %d pairs, want 1", len(got))
	}

	again, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatal(err)
	}
	if again.Index != snap.Index {
		t.Error("second Get returned a different generation")
	}
	if loader.count() != 1 {
		t.Errorf("loader calls = %d, want 1", loader.count())
	}
}

func TestConcurrentMissesShareOneRead(t *testing.T) {
	loader := &stubLoader{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	m, _ := newTestManager(loader, Options{})

	const callers = 50
	var wg sync.WaitGroup
	gens := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := m.Get(context.Background(), events.SportNFL)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			gens <- snap.Index.Generation
		}()
	}

	<-loader.entered
	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()
	close(gens)

	if n := loader.count(); n != 1 {
		t.Errorf("loader calls = %d, want exactly 1", n)
	}
	seen := make(map[string]bool)
	for g := range gens {
		seen[g] = true
	}
	if len(seen) != 1 {
		t.Errorf("callers saw %d generations, want 1", len(seen))
	}
}

func TestFailedRebuildServesLastGoodAndBacksOff(t *testing.T) {
	loader := &stubLoader{}
	bus := events.NewBus()
	var failed []events.IndexRebuildFailedEvent
	bus.Subscribe(events.EventIndexRebuildFailed, func(e events.Event) error {
		failed = append(failed, e.Payload.(events.IndexRebuildFailedEvent))
		return nil
	})
	m, clk := newTestManager(loader, Options{Bus: bus, BackoffBase: 2 * time.Second, BackoffMax: time.Minute})
	ctx := context.Background()

	first, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(6 * time.Minute)
	loader.set(errors.New("store down"))

	snap, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatalf("Get with last-good = %v, want stale snapshot", err)
	}
	if !snap.Stale || snap.Index != first.Index {
		t.Errorf("snapshot stale=%v same=%v, want last-good stale", snap.Stale, snap.Index == first.Index)
	}
	if len(failed) != 1 || !failed[0].ServingStale {
		t.Errorf("failed events = %+v", failed)
	}

	// Within the backoff window the store is not hit again.
	calls := loader.count()
	if _, err := m.Get(ctx, events.SportNFL); err != nil {
		t.Fatal(err)
	}
	if loader.count() != calls {
		t.Errorf("loader called during backoff")
	}

	// After the window the rebuild is retried and succeeds.
	loader.set(nil)
	clk.Advance(3 * time.Second)
	snap, err = m.Get(ctx, events.SportNFL)
	if err != nil || snap.Stale {
		t.Fatalf("Get after backoff = stale %v err %v", snap.Stale, err)
	}
	if snap.Index == first.Index {
		t.Error("expected a new generation after recovery")
	}
}

func TestFailureWithoutLastGoodIsUnavailable(t *testing.T) {
	loader := &stubLoader{err: errors.New("connection refused")}
	m, _ := newTestManager(loader, Options{})

	_, err := m.Get(context.Background(), events.SportNBA)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get = %v, want ErrUnavailable", err)
	}
	// Still backing off: no second read.
	_, err = m.Get(context.Background(), events.SportNBA)
	if !errors.Is(err, ErrUnavailable) || loader.count() != 1 {
		t.Errorf("second Get = %v after %d reads", err, loader.count())
	}
	st := m.Stats()
	if len(st) != 1 || st[0].Failures != 1 || st[0].LastError == "" {
		t.Errorf("stats = %+v", st)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	loader := &stubLoader{}
	m, _ := newTestManager(loader, Options{})
	ctx := context.Background()

	first, _ := m.Get(ctx, events.SportNFL)
	m.Invalidate(events.SportNFL, "test")
	second, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatal(err)
	}
	if second.Index == first.Index || loader.count() != 2 {
		t.Errorf("invalidate did not rebuild (calls=%d)", loader.count())
	}

	m.InvalidateAll("test")
	if _, err := m.Get(ctx, events.SportNFL); err != nil {
		t.Fatal(err)
	}
	if loader.count() != 3 {
		t.Errorf("InvalidateAll: calls = %d, want 3", loader.count())
	}
}

func TestCallerTimeoutFallsBack(t *testing.T) {
	loader := &stubLoader{}
	m, clk := newTestManager(loader, Options{BuildTimeout: time.Second})

	// No index yet: timeout is unavailable.
	loader.gate = make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := m.Get(ctx, events.SportNFL)
	cancel()
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get = %v, want ErrUnavailable", err)
	}
	close(loader.gate)
	if err := m.Warm(context.Background(), events.SportNFL); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	// With a last-good index: timeout serves it stale.
	clk.Advance(10 * time.Minute)
	loader.mu.Lock()
	loader.gate = make(chan struct{})
	loader.mu.Unlock()
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	snap, err := m.Get(ctx, events.SportNFL)
	cancel()
	if err != nil || !snap.Stale || snap.Index == nil {
		t.Errorf("Get = %+v, %v; want stale last-good", snap, err)
	}
	close(loader.gate)
}

func TestServeStaleReturnsImmediately(t *testing.T) {
	loader := &stubLoader{}
	m, clk := newTestManager(loader, Options{ServeStale: true})
	ctx := context.Background()

	first, err := m.Get(ctx, events.SportNFL)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(10 * time.Minute)
	loader.mu.Lock()
	loader.gate = make(chan struct{})
	loader.mu.Unlock()

	snap, err := m.Get(ctx, events.SportNFL)
	if err != nil || !snap.Stale || snap.Index != first.Index {
		t.Fatalf("Get = stale %v err %v, want immediate stale", snap.Stale, err)
	}

	close(loader.gate)
	if err := m.Warm(ctx, events.SportNFL); err != nil {
		t.Fatal(err)
	}
	snap, _ = m.Get(ctx, events.SportNFL)
	if snap.Stale || snap.Index == first.Index {
		t.Error("background rebuild was not swapped in")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{20, time.Minute},
	}
	for _, tt := range tests {
		if got := backoff(2*time.Second, time.Minute, tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.failures, got, tt.want)
		}
	}
}
