// Package pool manages a fixed base of N connections plus up to K overflow
// connections, checked out to callers under a FIFO or LIFO discipline, with
// background reaping of connections idle past their TTL.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/gobolt/driver/bolterr"
	"github.com/gobolt/driver/boltlog"
	"github.com/gobolt/driver/connection"
)

// Strategy selects which end of the idle set Checkout draws from.
type Strategy int

const (
	FIFO Strategy = iota
	LIFO
)

// Dialer creates and authenticates a fresh Connection on demand; supplied by
// the driver so the pool itself knows nothing about URIs or credentials.
type Dialer func(ctx context.Context) (*connection.Connection, error)

// Worker is one pool slot: a slot index plus the Connection it currently
// owns. The slot index stays stable across reconnects so the busy bitset
// can track it.
type Worker struct {
	slot int
	conn *connection.Connection

	lastUsed time.Time
}

// Conn returns the worker's underlying connection.
func (w *Worker) Conn() *connection.Connection { return w.conn }

// Pool is the checkout/checkin boundary described in §4.8. All mutable
// bookkeeping (idle set, waiter queue, live count, busy bitmap) is guarded
// by mu; each checked-out Worker's connection is thereafter owned
// exclusively by its caller until checkin.
type Pool struct {
	mu sync.Mutex

	dial     Dialer
	strategy Strategy
	base     int
	overflow int
	idleTTL  time.Duration

	idle    *list.List // of *Worker, ordered oldest-checked-in-first
	waiters *list.List // of chan checkoutResult, FIFO by arrival
	live    int
	busy    *bitset.BitSet
	nextID  int
	closed  bool

	log      boltlog.Logger
	stopReap chan struct{}
}

type checkoutResult struct {
	worker *Worker
	err    error
}

// Config bundles the pool-shape parameters recognized in §6.
type Config struct {
	BaseSize    int
	MaxOverflow int
	Strategy    Strategy
	IdleTTL     time.Duration // 0 disables idle reaping
}

// New constructs a Pool. No connections are created eagerly; they are
// established lazily on first Checkout, matching orbas1-Synnergy's ConnPool
// (github.com/orbas1-Synnergy core.ConnPool), generalized here to a
// protocol-aware Worker instead of a bare net.Conn and to fixed-capacity
// overflow instead of an unbounded idle cache.
func New(dial Dialer, cfg Config) *Pool {
	p := &Pool{
		dial:     dial,
		strategy: cfg.Strategy,
		base:     cfg.BaseSize,
		overflow: cfg.MaxOverflow,
		idleTTL:  cfg.IdleTTL,
		idle:     list.New(),
		waiters:  list.New(),
		busy:     bitset.New(uint(cfg.BaseSize + cfg.MaxOverflow)),
	}
	if cfg.IdleTTL > 0 {
		p.stopReap = make(chan struct{})
		go p.reap()
	}
	return p
}

// SetLogger replaces the pool's logger; nil restores boltlog.Default.
func (p *Pool) SetLogger(l boltlog.Logger) { p.log = l }

func (p *Pool) capacity() int { return p.base + p.overflow }

// Checkout returns an idle Worker (FIFO or LIFO per the configured
// strategy), creates a new one if capacity remains, or blocks up to timeout
// waiting for one to be checked in. Waiters are served in FIFO arrival
// order regardless of the idle-set discipline.
func (p *Pool) Checkout(ctx context.Context, timeout time.Duration) (*Worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &bolterr.PoolClosed{}
	}

	if w := p.popIdleLocked(); w != nil {
		p.mu.Unlock()
		return p.validate(ctx, w)
	}

	if p.live < p.capacity() {
		slot := p.nextID
		p.nextID++
		p.live++
		p.busy.Set(uint(slot))
		p.mu.Unlock()

		conn, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.live--
			p.busy.Clear(uint(slot))
			p.mu.Unlock()
			return nil, err
		}
		return &Worker{slot: slot, conn: conn, lastUsed: timeNow()}, nil
	}

	ch := make(chan checkoutResult, 1)
	elem := p.waiters.PushBack(ch)
	p.mu.Unlock()

	var timer *time.Timer
	var timerC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case r := <-ch:
		return r.worker, r.err
	case <-timerC:
		p.mu.Lock()
		p.waiters.Remove(elem)
		p.mu.Unlock()
		return nil, &bolterr.PoolExhausted{Waited: timeout.String()}
	case <-ctx.Done():
		p.mu.Lock()
		p.waiters.Remove(elem)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// popIdleLocked removes and returns one idle worker per the configured
// strategy, or nil if the idle set is empty. Caller holds p.mu.
func (p *Pool) popIdleLocked() *Worker {
	var elem *list.Element
	switch p.strategy {
	case LIFO:
		elem = p.idle.Back()
	default:
		elem = p.idle.Front()
	}
	if elem == nil {
		return nil
	}
	p.idle.Remove(elem)
	return elem.Value.(*Worker)
}

// validate reconnects w if its connection's last operation left it
// unhealthy, per the checkout validation rule.
func (p *Pool) validate(ctx context.Context, w *Worker) (*Worker, error) {
	if w.conn != nil && !w.conn.Unhealthy() {
		return w, nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
	}
	conn, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.busy.Clear(uint(w.slot))
		p.mu.Unlock()
		return nil, err
	}
	w.conn = conn
	return w, nil
}

// Checkin returns w to the idle set if its connection is Ready; otherwise
// the connection is closed, the slot freed, and live decremented. A queued
// waiter (if any) is handed the worker (or a freed slot) directly rather
// than going back through the idle set, preserving FIFO fairness.
func (p *Pool) Checkin(w *Worker) {
	p.mu.Lock()

	if p.closed {
		if w.conn != nil {
			_ = w.conn.Close()
		}
		p.live--
		p.busy.Clear(uint(w.slot))
		p.mu.Unlock()
		return
	}

	healthy := w.conn != nil && w.conn.State() == connection.Ready && !w.conn.Unhealthy()
	if !healthy {
		if w.conn != nil {
			_ = w.conn.Close()
		}
		p.live--
		p.busy.Clear(uint(w.slot))
	}

	// An overflow worker (slot >= base) with no waiter to hand it to is
	// shed rather than parked idle, so the idle set settles back to the
	// base size once a burst of contention subsides.
	if healthy && w.slot >= p.base && p.waiters.Len() == 0 {
		_ = w.conn.Close()
		p.live--
		p.busy.Clear(uint(w.slot))
		p.mu.Unlock()
		return
	}

	if elem := p.waiters.Front(); elem != nil {
		p.waiters.Remove(elem)
		ch := elem.Value.(chan checkoutResult)
		if healthy {
			w.lastUsed = timeNow()
			p.mu.Unlock()
			ch <- checkoutResult{worker: w}
			return
		}
		// Slot freed, not a live worker: dial a replacement for the waiter.
		slot := p.nextID
		p.nextID++
		p.live++
		p.busy.Set(uint(slot))
		p.mu.Unlock()

		conn, err := p.dial(context.Background())
		if err != nil {
			p.mu.Lock()
			p.live--
			p.busy.Clear(uint(slot))
			p.mu.Unlock()
			ch <- checkoutResult{err: err}
			return
		}
		ch <- checkoutResult{worker: &Worker{slot: slot, conn: conn, lastUsed: timeNow()}}
		return
	}

	if healthy {
		w.lastUsed = timeNow()
		p.idle.PushBack(w)
	}
	p.mu.Unlock()
}

// Transaction acquires a worker, runs fn with its connection, and releases
// it: an error from fn discards the worker (it is assumed to have left the
// connection in an indeterminate state) rather than returning it to the
// idle set healthy.
func (p *Pool) Transaction(ctx context.Context, timeout time.Duration, fn func(*connection.Connection) error) error {
	w, err := p.Checkout(ctx, timeout)
	if err != nil {
		return err
	}
	defer p.Checkin(w)

	if err := fn(w.conn); err != nil {
		_ = w.conn.Close()
		return err
	}
	return nil
}

// Stats reports idle/busy/live counts for diagnostics and tests of the
// pool invariants.
type Stats struct {
	Idle    int
	Busy    int
	Live    int
	Waiters int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Idle:    p.idle.Len(),
		Busy:    p.live - p.idle.Len(),
		Live:    p.live,
		Waiters: p.waiters.Len(),
	}
}

// Close stops accepting checkouts and closes every idle worker. Workers
// still checked out are closed as they are checked in.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.stopReap != nil {
		close(p.stopReap)
	}
	var firstErr error
	for e := p.idle.Front(); e != nil; e = e.Next() {
		w := e.Value.(*Worker)
		if err := w.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle.Init()
	p.mu.Unlock()
	return firstErr
}

// reap closes idle workers that have exceeded idleTTL, run on a ticker at
// half the TTL, mirroring orbas1-Synnergy's ConnPool.reaper.
func (p *Pool) reap() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapOnce()
		case <-p.stopReap:
			return
		}
	}
}

func (p *Pool) reapOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := timeNow().Add(-p.idleTTL)
	var next *list.Element
	for e := p.idle.Front(); e != nil; e = next {
		next = e.Next()
		w := e.Value.(*Worker)
		if w.lastUsed.Before(cutoff) && p.live > p.base {
			p.idle.Remove(e)
			_ = w.conn.Close()
			p.live--
			p.busy.Clear(uint(w.slot))
			boltlog.For(p.log, w.conn.CorrelationID()).Debugf("idle connection reaped")
		}
	}
}

// timeNow is the single call to time.Now in this package, isolated so the
// reap ticker's cutoff math stays easy to reason about in one place.
func timeNow() time.Time { return time.Now() }
