// Package process holds long-running background jobs started by cmd/matcher.
package process

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// Warmable rebuilds one sport's index. *indexcache.Manager satisfies it.
type Warmable interface {
	Warm(ctx context.Context, sport events.Sport) error
}

// Warmer rebuilds each configured sport's index on a cron schedule so
// match requests rarely pay for a store read.
type Warmer struct {
	cache   Warmable
	sports  []events.Sport
	timeout time.Duration

	cron    *cron.Cron
	initial sync.WaitGroup
	mu      sync.Mutex
	runs    int
}

// NewWarmer parses schedule (standard five-field cron or a descriptor
// such as "@every 4m").
func NewWarmer(cache Warmable, sports []events.Sport, schedule string, timeout time.Duration) (*Warmer, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	w := &Warmer{
		cache:   cache,
		sports:  sports,
		timeout: timeout,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("warm schedule %q: %w", schedule, err)
	}
	return w, nil
}

// RunOnce warms every sport in turn and returns how many failed.
func (w *Warmer) RunOnce(ctx context.Context) int {
	failed := 0
	for _, sport := range w.sports {
		sctx, cancel := context.WithTimeout(ctx, w.timeout)
		start := time.Now()
		err := w.cache.Warm(sctx, sport)
		cancel()
		if err != nil {
			failed++
			telemetry.Warnf("warmer: %s: %v", sport, err)
			continue
		}
		telemetry.Debugf("warmer: %s warmed in %s", sport, time.Since(start).Round(time.Millisecond))
	}
	w.mu.Lock()
	w.runs++
	w.mu.Unlock()
	return failed
}

// Runs is the number of completed warm passes.
func (w *Warmer) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Start warms once immediately, then on schedule.
func (w *Warmer) Start(ctx context.Context) {
	w.initial.Add(1)
	go func() {
		defer w.initial.Done()
		w.RunOnce(ctx)
	}()
	w.cron.Start()
	telemetry.Infof("warmer: scheduled for %d sports", len(w.sports))
}

// Stop halts the schedule and waits for any running pass, including the
// one started by Start, to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.initial.Wait()
}
