// Package sync schedules periodic notification refreshes.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 30 * time.Second

// ErrNotIdle is returned by Start when the poller has already been started
// or stopped.
var ErrNotIdle = errors.New("poller is not idle")

// State is the lifecycle state of a Poller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the poller.
type Status struct {
	State       State
	Generation  uint64
	Refreshes   int
	LastRefresh time.Time
}

// RefreshFunc performs one refresh cycle. It must return promptly once ctx
// is cancelled.
type RefreshFunc func(ctx context.Context)

// Option customizes a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the poller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller runs a RefreshFunc immediately on Start and then once per interval
// until Stop. Each Start/Stop transition bumps a generation token; callers
// capture Generation before slow work and check Current before publishing
// so results that land after Stop are discarded.
type Poller struct {
	refresh  RefreshFunc
	interval time.Duration
	clock    Clock
	logger   *slog.Logger

	triggerCh chan struct{}
	done      chan struct{}

	mu          gosync.Mutex
	state       State
	gen         uint64
	cancel      context.CancelFunc
	refreshes   int
	lastRefresh time.Time
}

// New creates an idle Poller. A non-positive interval selects
// DefaultInterval.
func New(refresh RefreshFunc, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		refresh:   refresh,
		interval:  interval,
		clock:     RealClock{},
		logger:    slog.Default(),
		triggerCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop. The first refresh runs right away. The
// loop ends when Stop is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrNotIdle
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.state = StateRunning
	p.gen++
	p.cancel = cancel
	// The ticker is created before returning so a test clock can count on it.
	ticker := p.clock.NewTicker(p.interval)
	p.mu.Unlock()

	p.logger.Debug("Poller started", "interval", p.interval)
	go p.loop(loopCtx, ticker)
	return nil
}

// Stop cancels the loop and invalidates the current generation. It does
// not wait for an in-flight refresh; use Done for that. Stop is idempotent
// and valid in any state.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateStopped:
		return
	case StateIdle:
		close(p.done)
	case StateRunning:
		p.cancel()
	}
	p.state = StateStopped
	p.gen++
	p.logger.Debug("Poller stopped")
}

// Trigger requests an immediate refresh from a running poller. Requests
// made while one is already pending are dropped.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Generation returns the current generation token.
func (p *Poller) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Current reports whether gen is still the live generation. It is always
// false once the poller has been stopped.
func (p *Poller) Current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != StateStopped && gen == p.gen
}

// Done is closed once the poller is stopped and its loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Status returns the poller's current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		State:       p.state,
		Generation:  p.gen,
		Refreshes:   p.refreshes,
		LastRefresh: p.lastRefresh,
	}
}

func (p *Poller) loop(ctx context.Context, ticker Ticker) {
	defer close(p.done)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.markStopped()
			return
		case <-ticker.C():
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

// runOnce invokes the refresh unless the loop is already cancelled.
func (p *Poller) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	p.refresh(ctx)

	p.mu.Lock()
	p.refreshes++
	p.lastRefresh = p.clock.Now()
	p.mu.Unlock()
}

// markStopped handles a loop ended by the parent context rather than Stop.
func (p *Poller) markStopped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning {
		p.cancel()
		p.state = StateStopped
		p.gen++
	}
}
