package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/resilience"
	"github.com/GriffinCanCode/apexclick/internal/trace"
)

// Clicker issues one background click at window-relative (x, y).
type Clicker interface {
	Click(x, y int) error
}

// Dispatcher drains a Queue and clicks each coordinate of its session.
// After Stop returns no further click is issued.
type Dispatcher struct {
	queue   *Queue
	clicker Clicker
	breaker *resilience.Breaker
	session uuid.UUID
	onClick func()

	clickMu  sync.Mutex // held across each click and while stopping
	stopping bool
	started  atomic.Bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	clicks   atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64
}

// NewDispatcher creates a dispatcher for one session. onClick, if set, is
// called after every successful click.
func NewDispatcher(queue *Queue, clicker Clicker, breaker *resilience.Breaker, session uuid.UUID, onClick func()) *Dispatcher {
	if breaker == nil {
		breaker = resilience.New(resilience.DefaultConfig())
	}
	return &Dispatcher{
		queue:   queue,
		clicker: clicker,
		breaker: breaker,
		session: session,
		onClick: onClick,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run blocks until ctx ends or Stop is called. It must be called at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.started.Store(true)
	defer close(d.done)

	log := trace.Logger(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopCh:
			return nil
		case c := <-d.queue.C():
			if c.Session != d.session {
				d.skipped.Add(1)
				continue
			}
			if !d.click(log, c) {
				return nil
			}
		}
	}
}

// click issues one click unless stopping; it reports false once stopped.
func (d *Dispatcher) click(log *slog.Logger, c Coordinate) bool {
	d.clickMu.Lock()
	defer d.clickMu.Unlock()
	if d.stopping {
		return false
	}

	err := d.breaker.Execute(func() error {
		if err := d.clicker.Click(c.X, c.Y); err != nil {
			return apperr.Wrapf(err, apperr.CodeClickFailed, "click (%d,%d)", c.X, c.Y)
		}
		return nil
	})
	switch {
	case err == nil:
		d.clicks.Add(1)
		if d.onClick != nil {
			d.onClick()
		}
	case errors.Is(err, resilience.ErrOpen):
		d.skipped.Add(1)
	default:
		if n := d.failures.Add(1); n == 1 || n%100 == 0 {
			log.Warn("click failed", "failures", n, "breaker", d.breaker.State().String(), "error", err)
		}
	}
	return true
}

// Stop prevents further clicks and waits for Run to exit. Safe to call
// repeatedly and before Run.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.clickMu.Lock()
		d.stopping = true
		d.clickMu.Unlock()
		close(d.stopCh)
	})
	if d.started.Load() {
		<-d.done
	}
}

// Clicks returns the number of successful clicks.
func (d *Dispatcher) Clicks() uint64 { return d.clicks.Load() }

// Failures returns the number of clicks the backend rejected.
func (d *Dispatcher) Failures() uint64 { return d.failures.Load() }

// Skipped returns coordinates discarded without a click attempt.
func (d *Dispatcher) Skipped() uint64 { return d.skipped.Load() }
