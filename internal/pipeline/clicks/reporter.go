package clicks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/apexclick/internal/trace"
)

// Sink receives click increments. Calls may overlap.
type Sink func(ctx context.Context, clicks int)

// Reporter accumulates clicks and hands them to the sink at most
// flushDelay after the first pending click, or sooner once maxBatch
// clicks are pending.
type Reporter struct {
	sink       Sink
	maxBatch   int
	flushDelay time.Duration

	mu      sync.Mutex
	pending int
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup

	total    atomic.Uint64
	reported atomic.Uint64
}

// NewReporter creates a click reporter.
func NewReporter(sink Sink, maxBatch int, flushDelay time.Duration) *Reporter {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Reporter{sink: sink, maxBatch: maxBatch, flushDelay: flushDelay}
}

// Add records n clicks.
func (r *Reporter) Add(n int) {
	if n <= 0 {
		return
	}
	r.total.Add(uint64(n))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pending += n

	if r.pending >= r.maxBatch {
		r.flushLocked()
		return
	}
	if r.timer == nil {
		r.timer = time.AfterFunc(r.flushDelay, r.timerFlush)
	}
}

// Click records a single click.
func (r *Reporter) Click() { r.Add(1) }

func (r *Reporter) timerFlush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer = nil
	r.flushLocked()
}

func (r *Reporter) flushLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.pending == 0 || r.sink == nil {
		r.pending = 0
		return
	}
	n := r.pending
	r.pending = 0
	r.reported.Add(uint64(n))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "click_report")
		defer span.End()
		span.SetAttr("clicks", n)
		r.sink(ctx, n)
	}()
}

// Flush reports pending clicks now.
func (r *Reporter) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

// Wait blocks until every started report has been delivered.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Stop flushes, waits for in-flight reports and ignores later clicks.
func (r *Reporter) Stop() {
	r.mu.Lock()
	r.flushLocked()
	r.stopped = true
	r.mu.Unlock()
	r.wg.Wait()
}

// Total returns every click ever added.
func (r *Reporter) Total() uint64 { return r.total.Load() }

// Reported returns clicks already handed to the sink.
func (r *Reporter) Reported() uint64 { return r.reported.Load() }
