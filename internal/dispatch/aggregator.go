package dispatch

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/google/uuid"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/matcher"
	"github.com/GriffinCanCode/apexclick/internal/trace"
)

// Session identifies the automation run whose results may be enqueued.
type Session struct {
	ID uuid.UUID
	// Window returns the target's current client rectangle in screen space.
	Window func() image.Rectangle
}

// AggregatorStats counts what happened to incoming results.
type AggregatorStats struct {
	Enqueued uint64 // coordinates accepted by the queue
	Dropped  uint64 // coordinates rejected by a full queue
	Stale    uint64 // results from an inactive session
	Outside  uint64 // points no longer inside the window
	Failed   uint64 // chunk results carrying an error
}

// Aggregator converts matcher results into queued Coordinates for the
// active session only.
type Aggregator struct {
	queue  *Queue
	active atomic.Pointer[Session]

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	stale    atomic.Uint64
	outside  atomic.Uint64
	failed   atomic.Uint64
}

// NewAggregator feeds queue.
func NewAggregator(queue *Queue) *Aggregator {
	return &Aggregator{queue: queue}
}

// Activate makes s the only session whose results are accepted.
func (a *Aggregator) Activate(s Session) {
	a.active.Store(&s)
}

// Deactivate rejects all further results until the next Activate.
func (a *Aggregator) Deactivate() {
	a.active.Store(nil)
}

// Active returns the current session id.
func (a *Aggregator) Active() (uuid.UUID, bool) {
	s := a.active.Load()
	if s == nil {
		return uuid.Nil, false
	}
	return s.ID, true
}

// Run consumes results until ctx ends or results is closed.
func (a *Aggregator) Run(ctx context.Context, results <-chan matcher.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			a.Handle(ctx, r)
		}
	}
}

// Handle enqueues one chunk's points. A failed chunk counts as no matches.
func (a *Aggregator) Handle(ctx context.Context, r matcher.Result) {
	s := a.active.Load()
	if s == nil || s.ID != r.Session {
		a.stale.Add(1)
		return
	}
	if r.Err != nil {
		if !apperr.IsCode(r.Err, apperr.CodeCancelled) {
			a.failed.Add(1)
			trace.Logger(ctx).Warn("chunk failed, treating as no matches",
				"chunk", r.Chunk.Bounds().String(), "generation", r.Generation, "error", r.Err)
		}
		return
	}
	if len(r.Points) == 0 {
		return
	}

	win := s.Window()
	for _, p := range r.Points {
		screen := r.Origin.Add(p)
		rel := screen.Sub(win.Min)
		if rel.X < 0 || rel.Y < 0 || rel.X >= win.Dx() || rel.Y >= win.Dy() {
			a.outside.Add(1)
			continue
		}
		if a.queue.Offer(Coordinate{X: rel.X, Y: rel.Y, Session: r.Session, Generation: r.Generation}) {
			a.enqueued.Add(1)
		} else {
			a.dropped.Add(1)
		}
	}
}

// Stats returns a snapshot of the counters.
func (a *Aggregator) Stats() AggregatorStats {
	return AggregatorStats{
		Enqueued: a.enqueued.Load(),
		Dropped:  a.dropped.Load(),
		Stale:    a.stale.Load(),
		Outside:  a.outside.Load(),
		Failed:   a.failed.Load(),
	}
}
