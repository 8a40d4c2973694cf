// Package pool guards access to a bounded set of reusable connections.
//
// Every connection handed out is wrapped in a Lease. The pool tracks
// outstanding leases by lease identity in its own set; the connection value
// itself is never annotated or mutated, so any type (including *sql.Conn)
// can be pooled.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/charleschow/market-matcher/internal/telemetry"
)

var (
	ErrExhausted     = errors.New("pool: exhausted")
	ErrClosed        = errors.New("pool: closed")
	ErrLeaseReleased = errors.New("pool: lease already released")
)

// Options configures a Pool. Open and Close are required.
type Options[C any] struct {
	Size           int
	AcquireTimeout time.Duration // 0 waits until ctx is done

	Open  func(ctx context.Context) (C, error)
	Close func(C) error

	// Healthy is checked on idle connections before reuse. Nil means always healthy.
	Healthy func(ctx context.Context, c C) bool

	// IsBroken decides whether an error returned from With means the
	// connection must be discarded instead of returned. Nil discards on
	// every error.
	IsBroken func(error) bool
}

// Pool is a bounded pool with an external free list and lease set.
type Pool[C any] struct {
	opts Options[C]
	sem  *semaphore.Weighted

	mu     sync.Mutex
	idle   []C
	leased map[*Lease[C]]struct{}
	closed bool
}

// Lease is a handle on one pooled connection. Release or Discard it
// exactly once; further calls return ErrLeaseReleased.
type Lease[C any] struct {
	pool *Pool[C]
	conn C
}

// Conn returns the leased connection.
func (l *Lease[C]) Conn() C { return l.conn }

func New[C any](opts Options[C]) (*Pool[C], error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("pool: size must be positive, got %d", opts.Size)
	}
	if opts.Open == nil || opts.Close == nil {
		return nil, fmt.Errorf("pool: Open and Close are required")
	}
	return &Pool[C]{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Size)),
		leased: make(map[*Lease[C]]struct{}),
	}, nil
}

// Acquire leases a connection, reusing an idle one when healthy. Under
// saturation it waits up to AcquireTimeout, then returns ErrExhausted.
func (p *Pool[C]) Acquire(ctx context.Context) (*Lease[C], error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	waitCtx := ctx
	if p.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		telemetry.Metrics.PoolExhausted.Inc()
		return nil, fmt.Errorf("%w: waited %s for one of %d connections", ErrExhausted, time.Since(start), p.opts.Size)
	}
	telemetry.Metrics.PoolWait.Observe(time.Since(start).Seconds())

	conn, err := p.take(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	l := &Lease[C]{pool: p, conn: conn}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.opts.Close(conn)
		p.sem.Release(1)
		return nil, ErrClosed
	}
	p.leased[l] = struct{}{}
	p.mu.Unlock()
	telemetry.Metrics.PoolInUse.Inc()
	return l, nil
}

// take pops a healthy idle connection or opens a new one. The caller holds
// a semaphore slot, so opening never exceeds Size.
func (p *Pool[C]) take(ctx context.Context) (C, error) {
	for {
		p.mu.Lock()
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		if p.opts.Healthy == nil || p.opts.Healthy(ctx, c) {
			return c, nil
		}
		if err := p.opts.Close(c); err != nil {
			telemetry.Debugf("pool: close unhealthy conn: %v", err)
		}
	}

	c, err := p.opts.Open(ctx)
	if err != nil {
		var zero C
		return zero, fmt.Errorf("pool: open: %w", err)
	}
	return c, nil
}

// Release returns the connection to the free list.
func (l *Lease[C]) Release() error { return l.pool.finish(l, false) }

// Discard closes the connection instead of returning it. The slot is freed
// and a replacement is opened lazily on the next Acquire.
func (l *Lease[C]) Discard() error { return l.pool.finish(l, true) }

func (p *Pool[C]) finish(l *Lease[C], discard bool) error {
	p.mu.Lock()
	if _, ok := p.leased[l]; !ok {
		p.mu.Unlock()
		return ErrLeaseReleased
	}
	delete(p.leased, l)
	if !discard && !p.closed {
		p.idle = append(p.idle, l.conn)
	} else {
		discard = true
	}
	p.mu.Unlock()

	telemetry.Metrics.PoolInUse.Dec()
	p.sem.Release(1)

	if discard {
		if err := p.opts.Close(l.conn); err != nil {
			return fmt.Errorf("pool: close: %w", err)
		}
	}
	return nil
}

// With leases a connection for the duration of fn and gives it back on
// every exit path. Broken connections and panics discard the lease; the
// panic is re-raised after cleanup.
func (p *Pool[C]) With(ctx context.Context, fn func(C) error) (err error) {
	l, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if done {
			return
		}
		r := recover()
		if derr := l.Discard(); derr != nil {
			telemetry.Debugf("pool: discard after panic: %v", derr)
		}
		if r != nil {
			panic(r)
		}
	}()

	err = fn(l.conn)
	done = true

	if err != nil && p.broken(err) {
		if derr := l.Discard(); derr != nil {
			telemetry.Debugf("pool: discard broken conn: %v", derr)
		}
		return err
	}
	if rerr := l.Release(); rerr != nil {
		telemetry.Debugf("pool: release: %v", rerr)
	}
	return err
}

func (p *Pool[C]) broken(err error) bool {
	if p.opts.IsBroken == nil {
		return true
	}
	return p.opts.IsBroken(err)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size   int
	Idle   int
	Leased int
}

func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Size: p.opts.Size, Idle: len(p.idle), Leased: len(p.leased)}
}

func (p *Pool[C]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close closes idle connections and marks the pool closed. Outstanding
// leases are closed when they are released.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := p.opts.Close(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
