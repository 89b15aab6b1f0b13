package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/apexclick/internal/config"
	"github.com/GriffinCanCode/apexclick/internal/dispatch"
	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/framebuf"
	"github.com/GriffinCanCode/apexclick/internal/matcher"
	"github.com/GriffinCanCode/apexclick/internal/pipeline/clicks"
	"github.com/GriffinCanCode/apexclick/internal/pipeline/events"
	"github.com/GriffinCanCode/apexclick/internal/resilience"
	"github.com/GriffinCanCode/apexclick/internal/screen"
	"github.com/GriffinCanCode/apexclick/internal/syncx"
	"github.com/GriffinCanCode/apexclick/internal/trace"
	"github.com/GriffinCanCode/apexclick/internal/window"
)

// Stats is a snapshot of pipeline counters across all sessions.
type Stats struct {
	Clicks          uint64
	ReportedClicks  uint64
	RejectedClicks  uint64 // skipped while the click breaker was open
	Generations     uint64
	SkippedFrames   uint64
	CaptureFailures uint64
	ChunksProcessed uint64
	ChunkFailures   uint64
	Enqueued        uint64
	Dropped         uint64
	Stale           uint64
	Outside         uint64
	QueueLen        int
}

// captureStats is implemented by capturers that count their grabs.
type captureStats interface {
	Stats() (captures, failures uint64)
}

// session is one Start..Stop run against one window.
type session struct {
	id         uuid.UUID
	cancel     context.CancelFunc
	target     window.Target
	buffer     *framebuf.Buffer
	snapshot   *syncx.RWGuard[window.Snapshot]
	dispatcher *dispatch.Dispatcher
	done       chan struct{}
}

// Manager owns the long-lived matcher pool, dispatch queue and aggregator,
// and starts and stops automation sessions on top of them.
type Manager struct {
	cfg      *config.Config
	capturer screen.Capturer
	opener   window.Opener

	pool     *matcher.Pool
	queue    *dispatch.Queue
	agg      *dispatch.Aggregator
	breaker  *resilience.Breaker
	reporter *clicks.Reporter
	events   *events.Store
	errCh    chan error

	aggCancel context.CancelFunc
	aggDone   chan struct{}

	mu     sync.Mutex
	sess   *session
	closed bool

	generations   atomic.Uint64
	skippedFrames atomic.Uint64
}

// New creates a manager. onClicks, if set, receives batched click increments.
func New(cfg *config.Config, capturer screen.Capturer, opener window.Opener, onClicks func(int)) *Manager {
	if opener == nil {
		opener = window.Open
	}

	var sink clicks.Sink
	if onClicks != nil {
		sink = func(_ context.Context, n int) { onClicks(n) }
	}

	queue := dispatch.NewQueue(cfg.QueueCapacity)
	m := &Manager{
		cfg:      cfg,
		capturer: capturer,
		opener:   opener,
		pool:     matcher.NewPool(cfg.Workers),
		queue:    queue,
		agg:      dispatch.NewAggregator(queue),
		breaker:  resilience.New(resilience.DefaultConfig()),
		reporter: clicks.NewReporter(sink, ClickReportMaxBatch, cfg.ClickReportInterval),
		events:   events.NewStore(EventMaxEntries, EventChannelSize),
		errCh:    make(chan error, ErrorChannelSize),
		aggDone:  make(chan struct{}),
	}
	m.breaker.WithHook(m.onBreakerChange)

	ctx, cancel := context.WithCancel(context.Background())
	m.aggCancel = cancel
	go func() {
		defer close(m.aggDone)
		m.agg.Run(ctx, m.pool.Results())
	}()
	return m
}

// Start validates the configuration, attaches to the target window and
// begins a new session bounded by ctx. A running session is stopped first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return apperr.New(apperr.CodeUnavailable, "pipeline closed")
	}
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	m.stopLocked()

	target, err := m.opener(m.cfg.Window)
	if err != nil {
		return err
	}
	snap, err := target.Inspect()
	if err != nil {
		_ = target.Close()
		return err
	}

	m.queue.Drain()

	buf, err := framebuf.Allocate(ctx, snap.Rect.Dx(), snap.Rect.Dy(), m.cfg.FrameSlots)
	if err != nil {
		_ = target.Close()
		return err
	}

	id := uuid.New()
	sctx, cancel := context.WithCancel(trace.WithContext(ctx, trace.ForSession(id)))
	s := &session{
		id:       id,
		cancel:   cancel,
		target:   target,
		buffer:   buf,
		snapshot: syncx.NewGuard(snap),
		done:     make(chan struct{}),
	}
	s.dispatcher = dispatch.NewDispatcher(m.queue, target, m.breaker, id, m.onClick)
	m.breaker.Reset()

	m.agg.Activate(dispatch.Session{
		ID:     id,
		Window: func() image.Rectangle { return s.snapshot.Get().Rect },
	})

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return s.dispatcher.Run(gctx) })
	g.Go(func() error { return m.produce(gctx, s) })
	go m.supervise(sctx, s, g)

	m.sess = s
	trace.Logger(sctx).Info("automation started",
		"window", m.cfg.Window.String(),
		"width", snap.Rect.Dx(),
		"height", snap.Rect.Dy(),
		"workers", m.pool.Size(),
		"colors", len(m.cfg.Colors),
		"queue_capacity", m.queue.Cap(),
		"segment", buf.Name(),
	)
	m.events.Info(id, MsgEnabled)
	return nil
}

// supervise waits for the session's loops and tears the session down if it
// ended on its own.
func (m *Manager) supervise(ctx context.Context, s *session, g *errgroup.Group) {
	err := g.Wait()
	close(s.done)

	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeUnknown {
			err = apperr.Wrap(err, apperr.CodeInternal, "capture loop failed")
		}
		log := trace.Logger(ctx)
		log.Error("automation halted", "code", apperr.CodeOf(err).String(), "fatal", apperr.IsFatal(err), "error", err)

		msg := fmt.Sprintf(msgCaptureErr, err)
		if apperr.IsCode(err, apperr.CodeWindowLost) {
			msg = MsgWindowLost
		}
		m.events.Fatal(s.id, err, msg)
		select {
		case m.errCh <- err:
		default:
			log.Warn("error channel full, dropping", "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == s {
		m.stopLocked()
	}
}

// Stop ends the current session, if any. No click is issued after Stop
// returns. Pending click counts are handed to the sink asynchronously.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	s := m.sess
	if s == nil {
		return
	}
	m.sess = nil

	m.agg.Deactivate()
	s.cancel()
	s.dispatcher.Stop()
	<-s.done

	ctx := trace.WithContext(context.Background(), trace.ForSession(s.id))
	log := trace.Logger(ctx)

	if n := m.queue.Drain(); n > 0 {
		log.Debug("discarded pending coordinates", "count", n)
	}
	if err := s.buffer.Release(); err != nil {
		log.Warn("releasing frame buffer", "error", err)
	}
	if err := s.target.Close(); err != nil {
		log.Warn("closing target window", "error", err)
	}
	m.reporter.Flush()

	log.Info("automation stopped",
		"clicks", s.dispatcher.Clicks(),
		"click_failures", s.dispatcher.Failures(),
		"click_skipped", s.dispatcher.Skipped(),
		"generations", s.buffer.Generation(),
		"dropped", m.queue.Dropped(),
	)
	m.events.Info(s.id, MsgDisabled)
}

// Close stops any session, shuts down the matcher pool and releases the
// capturer. The manager cannot be restarted.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopLocked()
	m.mu.Unlock()

	m.pool.Close()
	m.aggCancel()
	<-m.aggDone
	m.reporter.Stop()
	if m.capturer != nil {
		m.capturer.Close()
	}
}

func (m *Manager) onClick() {
	m.reporter.Click()
}

func (m *Manager) onBreakerChange(from, to resilience.State) {
	id, _ := m.agg.Active()
	switch {
	case to == resilience.Open:
		m.events.Info(id, MsgClicksPaused)
	case to == resilience.Closed && from != resilience.Closed:
		m.events.Info(id, MsgClicksResumed)
	}
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil
}

// Session returns the active session id.
func (m *Manager) Session() (uuid.UUID, bool) {
	return m.agg.Active()
}

// Events returns status messages for the operator.
func (m *Manager) Events() <-chan events.Event {
	return m.events.Events()
}

// History returns the retained status messages.
func (m *Manager) History() []events.Event {
	return m.events.Entries()
}

// Errors delivers each fatal session error once. Every error is an
// *errors.AppError, so status.FromError recovers its category.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	as := m.agg.Stats()
	processed, _ := m.pool.Stats()
	st := Stats{
		Clicks:          m.reporter.Total(),
		ReportedClicks:  m.reporter.Reported(),
		RejectedClicks:  m.breaker.Rejected(),
		Generations:     m.generations.Load(),
		SkippedFrames:   m.skippedFrames.Load(),
		ChunksProcessed: processed,
		ChunkFailures:   as.Failed,
		Enqueued:        m.queue.Accepted(),
		Dropped:         m.queue.Dropped(),
		Stale:           as.Stale,
		Outside:         as.Outside,
		QueueLen:        m.queue.Len(),
	}
	if cs, ok := m.capturer.(captureStats); ok {
		_, st.CaptureFailures = cs.Stats()
	}
	return st
}
