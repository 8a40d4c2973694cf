// Package indexcache holds one market index per sport and rebuilds it from
// the market store on expiry or invalidation. Concurrent misses share a
// single store read; readers never wait on a lock held across I/O.
package indexcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// ErrUnavailable means no index could be produced in time and no
// last-good index exists to fall back on.
var ErrUnavailable = errors.New("indexcache: index unavailable")

// Loader performs the bulk read of active contracts for one sport.
type Loader interface {
	LoadActive(ctx context.Context, sport events.Sport) ([]market.Contract, error)
}

// TableSource supplies the alias table a build resolves teams against.
// *teams.Normalizer satisfies it.
type TableSource interface {
	Table() *teams.Table
}

type Options struct {
	TTL          time.Duration
	BuildTimeout time.Duration
	ServeStale   bool // return last-good immediately while rebuilding
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	Bus          *events.Bus
	Now          func() time.Time
}

func (o *Options) defaults() {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.BuildTimeout <= 0 {
		o.BuildTimeout = 30 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Snapshot is what a caller gets back from Get. Stale is set when the
// index is past its TTL, invalidated, or its last rebuild failed.
type Snapshot struct {
	Index   *market.Index
	Stale   bool
	BuiltAt time.Time
}

type entry struct {
	ix      *market.Index
	builtAt time.Time
}

type slot struct {
	current atomic.Pointer[entry]

	mu        sync.Mutex
	invGen    uint64 // bumped on every invalidation
	cleanGen  uint64 // invGen observed by the build that produced current
	failures  int
	retryAt   time.Time
	lastErr   error
	lastBuild time.Duration
}

type Manager struct {
	loader Loader
	tables TableSource
	opts   Options

	mu    sync.Mutex
	slots map[events.Sport]*slot

	sf singleflight.Group
}

func NewManager(loader Loader, tables TableSource, opts Options) *Manager {
	opts.defaults()
	return &Manager{
		loader: loader,
		tables: tables,
		opts:   opts,
		slots:  make(map[events.Sport]*slot),
	}
}

func (m *Manager) slot(sport events.Sport) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[sport]
	if !ok {
		s = &slot{}
		m.slots[sport] = s
	}
	return s
}

type freshness int

const (
	fresh freshness = iota
	expired
	backingOff
)

func (m *Manager) freshness(s *slot, e *entry, now time.Time) freshness {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 && now.Before(s.retryAt) {
		return backingOff
	}
	if e == nil || s.cleanGen != s.invGen || now.Sub(e.builtAt) >= m.opts.TTL {
		return expired
	}
	return fresh
}

// Get returns the current index for sport, rebuilding it when expired.
// With a last-good index available, a failed or slow rebuild falls back to
// it with Stale set. Without one, Get returns ErrUnavailable.
func (m *Manager) Get(ctx context.Context, sport events.Sport) (Snapshot, error) {
	s := m.slot(sport)
	e := s.current.Load()

	switch m.freshness(s, e, m.opts.Now()) {
	case fresh:
		return Snapshot{Index: e.ix, BuiltAt: e.builtAt}, nil
	case backingOff:
		if e != nil {
			return m.stale(sport, e), nil
		}
		return Snapshot{}, fmt.Errorf("%w: %s rebuild backing off: %v", ErrUnavailable, sport, s.err())
	}

	ch := m.rebuild(sport)
	if e != nil && m.opts.ServeStale {
		return m.stale(sport, e), nil
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			if e != nil {
				return m.stale(sport, e), nil
			}
			return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
		}
		built := res.Val.(*entry)
		return Snapshot{Index: built.ix, BuiltAt: built.builtAt}, nil
	case <-ctx.Done():
		if e != nil {
			return m.stale(sport, e), nil
		}
		return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, sport, ctx.Err())
	}
}

func (m *Manager) stale(sport events.Sport, e *entry) Snapshot {
	telemetry.Metrics.StaleServes.WithLabelValues(string(sport)).Inc()
	return Snapshot{Index: e.ix, BuiltAt: e.builtAt, Stale: true}
}

// rebuild starts or joins the in-flight build for sport. The build runs on
// its own context so a caller giving up does not cancel it for the others.
func (m *Manager) rebuild(sport events.Sport) <-chan singleflight.Result {
	return m.sf.DoChan(string(sport), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.BuildTimeout)
		defer cancel()
		return m.build(ctx, sport)
	})
}

func (m *Manager) build(ctx context.Context, sport events.Sport) (*entry, error) {
	s := m.slot(sport)
	s.mu.Lock()
	gen := s.invGen
	s.mu.Unlock()

	start := time.Now()
	contracts, err := m.loader.LoadActive(ctx, sport)
	if err != nil {
		m.fail(sport, s, err)
		return nil, err
	}
	ix := market.Build(contracts, sport, m.tables.Table())
	took := time.Since(start)

	e := &entry{ix: ix, builtAt: m.opts.Now()}
	s.current.Store(e)

	s.mu.Lock()
	s.cleanGen = gen
	s.failures = 0
	s.retryAt = time.Time{}
	s.lastErr = nil
	s.lastBuild = took
	s.mu.Unlock()

	pairs := len(ix.Pairs())
	telemetry.Metrics.IndexRebuilds.WithLabelValues(string(sport), "ok").Inc()
	telemetry.Metrics.IndexBuildTime.WithLabelValues(string(sport)).Observe(took.Seconds())
	telemetry.Metrics.IndexPairs.WithLabelValues(string(sport)).Set(float64(pairs))
	telemetry.Metrics.IndexUnindexed.WithLabelValues(string(sport)).Set(float64(len(ix.Unindexed)))
	telemetry.Infof("indexcache: %s generation %s built in %s (%d contracts, %d pairs, %d unindexed)",
		sport, ix.Generation[:8], took.Round(time.Millisecond), ix.Contracts, pairs, len(ix.Unindexed))

	m.opts.Bus.Emit(events.EventIndexRebuilt, sport, events.IndexRebuiltEvent{
		Generation: ix.Generation,
		Contracts:  ix.Contracts,
		Pairs:      pairs,
		Unindexed:  len(ix.Unindexed),
		BuildTime:  took,
	})
	return e, nil
}

func (m *Manager) fail(sport events.Sport, s *slot, err error) {
	s.mu.Lock()
	s.failures++
	wait := backoff(m.opts.BackoffBase, m.opts.BackoffMax, s.failures)
	s.retryAt = m.opts.Now().Add(wait)
	s.lastErr = err
	retryAt, failures := s.retryAt, s.failures
	s.mu.Unlock()

	servingStale := s.current.Load() != nil
	telemetry.Metrics.IndexRebuilds.WithLabelValues(string(sport), "error").Inc()
	telemetry.Warnf("indexcache: %s rebuild failed (attempt %d, retry in %s, stale=%v): %v",
		sport, failures, wait, servingStale, err)

	m.opts.Bus.Emit(events.EventIndexRebuildFailed, sport, events.IndexRebuildFailedEvent{
		Error:        err.Error(),
		ServingStale: servingStale,
		RetryAfter:   retryAt,
	})
}

// backoff doubles from base per consecutive failure, capped at limit.
func backoff(base, limit time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

func (s *slot) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Invalidate marks sport's index stale so the next Get rebuilds it. Any
// pending backoff is cleared: new data is a reason to retry now.
func (m *Manager) Invalidate(sport events.Sport, source string) {
	s := m.slot(sport)
	s.mu.Lock()
	s.invGen++
	s.failures = 0
	s.retryAt = time.Time{}
	s.mu.Unlock()

	telemetry.Metrics.InvalidationsRx.WithLabelValues(source).Inc()
	telemetry.Debugf("indexcache: %s invalidated by %s", sport, source)
	m.opts.Bus.Emit(events.EventIndexInvalidated, sport, events.IndexInvalidatedEvent{Source: source})
}

// InvalidateAll invalidates every sport that has been requested so far.
func (m *Manager) InvalidateAll(source string) {
	for _, sport := range m.sports() {
		m.Invalidate(sport, source)
	}
}

// Warm rebuilds sport synchronously, joining any build already in flight.
func (m *Manager) Warm(ctx context.Context, sport events.Sport) error {
	select {
	case res := <-m.rebuild(sport):
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) sports() []events.Sport {
	m.mu.Lock()
	out := make([]events.Sport, 0, len(m.slots))
	for sp := range m.slots {
		out = append(out, sp)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SlotStats is a diagnostic view of one sport's cache slot.
type SlotStats struct {
	Sport      events.Sport  `json:"sport"`
	Generation string        `json:"generation,omitempty"`
	BuiltAt    time.Time     `json:"built_at,omitempty"`
	Age        time.Duration `json:"age_ns"`
	Pairs      int           `json:"pairs"`
	Unindexed  int           `json:"unindexed"`
	Stale      bool          `json:"stale"`
	Failures   int           `json:"failures"`
	RetryAt    time.Time     `json:"retry_at,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	BuildTime  time.Duration `json:"build_time_ns"`
}

func (m *Manager) Stats() []SlotStats {
	now := m.opts.Now()
	var out []SlotStats
	for _, sport := range m.sports() {
		s := m.slot(sport)
		e := s.current.Load()
		st := SlotStats{Sport: sport, Stale: m.freshness(s, e, now) != fresh}

		s.mu.Lock()
		st.Failures = s.failures
		st.RetryAt = s.retryAt
		st.BuildTime = s.lastBuild
		if s.lastErr != nil {
			st.LastError = s.lastErr.Error()
		}
		s.mu.Unlock()

		if e != nil {
			st.Generation = e.ix.Generation
			st.BuiltAt = e.builtAt
			st.Age = now.Sub(e.builtAt)
			st.Pairs = len(e.ix.Pairs())
			st.Unindexed = len(e.ix.Unindexed)
		}
		out = append(out, st)
	}
	return out
}
