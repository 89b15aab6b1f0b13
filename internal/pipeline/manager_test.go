package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/apexclick/internal/config"
	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/matcher"
	"github.com/GriffinCanCode/apexclick/internal/pipeline/events"
	"github.com/GriffinCanCode/apexclick/internal/window"
)

type fakeTarget struct {
	mu        sync.Mutex
	rect      image.Rectangle
	resized   image.Rectangle // used once inspects exceeds resizeAt
	resizeAt  int
	lostAfter  int
	failClicks bool
	inspects   int
	clicks    []image.Point
	closed    bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{rect: image.Rect(100, 100, 200, 200)}
}

func (t *fakeTarget) Handle() window.Handle { return 1 }

func (t *fakeTarget) Inspect() (window.Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inspects++
	if t.lostAfter > 0 && t.inspects > t.lostAfter {
		return window.Snapshot{}, apperr.New(apperr.CodeWindowLost, "window closed")
	}
	if t.resizeAt > 0 && t.inspects > t.resizeAt {
		t.rect = t.resized
	}
	return window.Snapshot{Handle: 1, Rect: t.rect}, nil
}

func (t *fakeTarget) Click(x, y int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failClicks {
		return errors.New("post message failed")
	}
	t.clicks = append(t.clicks, image.Pt(x, y))
	return nil
}

func (t *fakeTarget) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTarget) Clicks() []image.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]image.Point(nil), t.clicks...)
}

func (t *fakeTarget) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fakeCapturer paints a red block at window-local (25,25)-(75,75).
type fakeCapturer struct {
	calls     atomic.Int64
	failed    atomic.Uint64
	failAfter int64
	closed    atomic.Bool
}

func (c *fakeCapturer) Capture(rect image.Rectangle) (*image.RGBA, error) {
	n := c.calls.Add(1)
	if c.failAfter > 0 && n > c.failAfter {
		c.failed.Add(1)
		return nil, apperr.New(apperr.CodeCaptureFailed, "display gone")
	}
	img := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	red := color.RGBA{R: 255, A: 255}
	for y := 25; y < 75 && y < rect.Dy(); y++ {
		for x := 25; x < 75 && x < rect.Dx(); x++ {
			img.SetRGBA(x, y, red)
		}
	}
	return img, nil
}

func (c *fakeCapturer) Close() { c.closed.Store(true) }

func (c *fakeCapturer) Stats() (captures, failures uint64) {
	f := c.failed.Load()
	return uint64(c.calls.Load()) - f, f
}

func testConfig() *config.Config {
	return &config.Config{
		Window:              1,
		Colors:              []matcher.Color{{R: 255}},
		MinDistance:         50,
		Workers:             4,
		QueueCapacity:       100,
		FrameSlots:          2,
		CaptureRate:         200,
		ClickReportInterval: 10 * time.Millisecond,
	}
}

func openerFor(targets ...*fakeTarget) (window.Opener, *atomic.Int64) {
	var calls atomic.Int64
	return func(window.Handle) (window.Target, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(targets) {
			i = len(targets) - 1
		}
		return targets[i], nil
	}, &calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hasEvent(history []events.Event, kind events.Kind, msg string) bool {
	for _, e := range history {
		if e.Kind == kind && e.Message == msg {
			return true
		}
	}
	return false
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no window", func(c *config.Config) { c.Window = 0 }, "Please select a valid target window."},
		{"no colors", func(c *config.Config) { c.Colors = nil }, "No target colors defined!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			opener, calls := openerFor(newFakeTarget())
			m := New(cfg, &fakeCapturer{}, opener, nil)
			defer m.Close()

			err := m.Start(context.Background())
			if !apperr.IsConfig(err) {
				t.Fatalf("Start() = %v, want config error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Start() = %q, want message %q", err, tt.want)
			}
			if calls.Load() != 0 {
				t.Error("window opened despite invalid config")
			}
			if m.Running() {
				t.Error("pipeline running after rejected start")
			}
		})
	}
}

func TestStartOpenFailure(t *testing.T) {
	opener := func(window.Handle) (window.Target, error) {
		return nil, apperr.New(apperr.CodeWindowLost, "no such window")
	}
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); !apperr.IsCode(err, apperr.CodeWindowLost) {
		t.Errorf("Start() = %v, want WINDOW_LOST", err)
	}
	if m.Running() {
		t.Error("pipeline running after failed open")
	}
}

func TestClicksLandInsideTarget(t *testing.T) {
	target := newFakeTarget()
	opener, _ := openerFor(target)

	var reported atomic.Int64
	m := New(testConfig(), &fakeCapturer{}, opener, func(n int) { reported.Add(int64(n)) })
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !m.Running() {
		t.Fatal("Running() = false after Start")
	}
	waitFor(t, "clicks", func() bool { return len(target.Clicks()) >= 8 })
	m.Stop()

	after := len(target.Clicks())
	time.Sleep(50 * time.Millisecond)
	if got := len(target.Clicks()); got != after {
		t.Errorf("%d clicks issued after Stop returned", got-after)
	}

	for _, p := range target.Clicks() {
		if p.X < 25 || p.X >= 75 || p.Y < 25 || p.Y >= 75 {
			t.Errorf("click %v outside the red block", p)
		}
	}

	if !target.Closed() {
		t.Error("target not closed on Stop")
	}
	if m.Running() {
		t.Error("Running() = true after Stop")
	}

	stats := m.Stats()
	if stats.Clicks != uint64(after) || stats.ReportedClicks != uint64(after) {
		t.Errorf("Stats() clicks = %d, reported = %d, want %d", stats.Clicks, stats.ReportedClicks, after)
	}
	waitFor(t, "click sink", func() bool { return reported.Load() == int64(after) })
	if stats.Enqueued == 0 || stats.ChunksProcessed == 0 {
		t.Errorf("Stats() = %+v, want enqueued coordinates and processed chunks", stats)
	}
	if stats.Generations == 0 {
		t.Error("no frame generations recorded")
	}
	if stats.QueueLen != 0 {
		t.Errorf("queue holds %d coordinates after Stop", stats.QueueLen)
	}

	history := m.History()
	if !hasEvent(history, events.KindInfo, MsgEnabled) || !hasEvent(history, events.KindInfo, MsgDisabled) {
		t.Errorf("history = %v, want enabled and disabled messages", history)
	}
}

func TestWindowLostHaltsPipeline(t *testing.T) {
	target := newFakeTarget()
	target.lostAfter = 3
	opener, _ := openerFor(target)
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	select {
	case err := <-m.Errors():
		if !apperr.IsCode(err, apperr.CodeWindowLost) {
			t.Errorf("error = %v, want WINDOW_LOST", err)
		}
		if got := status.Convert(err).Code(); got != codes.NotFound {
			t.Errorf("status code = %v, want NotFound", got)
		}
		if got := apperr.FromGRPCError(err).Code; got != apperr.CodeWindowLost {
			t.Errorf("decoded code = %s, want WINDOW_LOST", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no fatal error reported")
	}

	waitFor(t, "pipeline to stop", func() bool { return !m.Running() })
	if !target.Closed() {
		t.Error("target not closed after window loss")
	}
	if !hasEvent(m.History(), events.KindFatal, MsgWindowLost) {
		t.Errorf("history = %v, want %q", m.History(), MsgWindowLost)
	}
	for _, e := range m.History() {
		if e.Kind == events.KindFatal && e.Code != apperr.CodeWindowLost {
			t.Errorf("fatal event code = %s, want WINDOW_LOST", e.Code)
		}
	}

	select {
	case err := <-m.Errors():
		t.Errorf("second error reported: %v", err)
	default:
	}
}

func TestCaptureFailureHaltsPipeline(t *testing.T) {
	target := newFakeTarget()
	opener, _ := openerFor(target)
	m := New(testConfig(), &fakeCapturer{failAfter: 2}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	select {
	case err := <-m.Errors():
		if !apperr.IsCode(err, apperr.CodeCaptureFailed) {
			t.Errorf("error = %v, want CAPTURE_FAILED", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no fatal error reported")
	}
	waitFor(t, "pipeline to stop", func() bool { return !m.Running() })
	if got := m.Stats().CaptureFailures; got != 1 {
		t.Errorf("CaptureFailures = %d, want 1", got)
	}

	var found bool
	for _, e := range m.History() {
		if e.Kind == events.KindFatal {
			found = strings.HasPrefix(e.Message, "Capture error: ") && strings.HasSuffix(e.Message, ". Stopping.")
		}
	}
	if !found {
		t.Errorf("history = %v, want a capture error message", m.History())
	}
}

func TestRestartStartsNewSession(t *testing.T) {
	first, second := newFakeTarget(), newFakeTarget()
	opener, calls := openerFor(first, second)
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("first Start() = %v", err)
	}
	id1, _ := m.Session()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start() = %v", err)
	}
	id2, ok := m.Session()
	if !ok || id2 == id1 {
		t.Errorf("sessions = %s, %s, want distinct", id1, id2)
	}
	if !first.Closed() {
		t.Error("first target not closed on restart")
	}
	if calls.Load() != 2 {
		t.Errorf("opener called %d times, want 2", calls.Load())
	}

	waitFor(t, "clicks on second target", func() bool { return len(second.Clicks()) > 0 })
	frozen := len(first.Clicks())
	time.Sleep(30 * time.Millisecond)
	if len(first.Clicks()) != frozen {
		t.Error("first target clicked after its session ended")
	}
	m.Stop()
}

func TestWindowResizeReallocates(t *testing.T) {
	target := newFakeTarget()
	target.resizeAt = 3
	target.resized = image.Rect(100, 100, 220, 180)
	opener, _ := openerFor(target)
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	waitFor(t, "cycles after resize", func() bool { return m.Stats().Generations > 10 })

	m.Stop()
	select {
	case err := <-m.Errors():
		t.Errorf("unexpected fatal error: %v", err)
	default:
	}
	for _, p := range target.Clicks() {
		if p.X < 25 || p.X >= 75 || p.Y < 25 || p.Y >= 75 {
			t.Errorf("click %v outside the red block", p)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	opener, _ := openerFor(newFakeTarget())
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestCloseRejectsStart(t *testing.T) {
	capturer := &fakeCapturer{}
	opener, _ := openerFor(newFakeTarget())
	m := New(testConfig(), capturer, opener, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	m.Close()
	m.Close()

	if !capturer.closed.Load() {
		t.Error("capturer not closed")
	}
	if err := m.Start(context.Background()); !apperr.IsCode(err, apperr.CodeUnavailable) {
		t.Errorf("Start() after Close = %v, want UNAVAILABLE", err)
	}
}

func TestContextCancelEndsSession(t *testing.T) {
	target := newFakeTarget()
	opener, _ := openerFor(target)
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	cancel()

	waitFor(t, "session teardown", func() bool { return !m.Running() })
	if !target.Closed() {
		t.Error("target not closed after cancel")
	}
	select {
	case err := <-m.Errors():
		t.Errorf("cancel reported as fatal: %v", err)
	default:
	}
}

func TestStopWithSinkCallingBack(t *testing.T) {
	target := newFakeTarget()
	opener, _ := openerFor(target)
	cfg := testConfig()
	cfg.ClickReportInterval = time.Hour

	var m *Manager
	var reported atomic.Int64
	m = New(cfg, &fakeCapturer{}, opener, func(n int) {
		_ = m.Running()
		_, _ = m.Session()
		reported.Add(int64(n))
	})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	waitFor(t, "clicks", func() bool { return len(target.Clicks()) >= 3 })

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop blocked on a sink that calls back into the manager")
	}

	want := int64(len(target.Clicks()))
	waitFor(t, "click sink", func() bool { return reported.Load() == want })
}

func TestFailingClicksPauseDispatch(t *testing.T) {
	target := newFakeTarget()
	target.failClicks = true
	opener, _ := openerFor(target)
	m := New(testConfig(), &fakeCapturer{}, opener, nil)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	waitFor(t, "breaker to reject clicks", func() bool { return m.Stats().RejectedClicks > 0 })
	m.Stop()

	if !hasEvent(m.History(), events.KindInfo, MsgClicksPaused) {
		t.Errorf("history = %v, want %q", m.History(), MsgClicksPaused)
	}
	if got := m.Stats().Clicks; got != 0 {
		t.Errorf("Clicks = %d, want 0", got)
	}
}
