package pipeline

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/apexclick/internal/matcher"
	"github.com/GriffinCanCode/apexclick/internal/screen"
	"github.com/GriffinCanCode/apexclick/internal/trace"
)

// produce runs capture cycles until ctx ends or a cycle fails.
func (m *Manager) produce(ctx context.Context, s *session) error {
	var limiter *rate.Limiter
	if m.cfg.CaptureRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.cfg.CaptureRate), 1)
	}
	var change *screen.ChangeFilter
	if m.cfg.SkipUnchanged {
		change = screen.NewChangeFilter(screen.MaxHashDistance, screen.MaxConsecutiveSkips)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if err := m.cycle(ctx, s, change); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// cycle validates the window, captures it, publishes the pixels and hands
// one task per chunk to the pool without waiting for results.
func (m *Manager) cycle(ctx context.Context, s *session, change *screen.ChangeFilter) error {
	snap, err := s.target.Inspect()
	if err != nil {
		return err
	}
	s.snapshot.Set(snap)

	img, err := m.capturer.Capture(snap.Rect)
	if err != nil {
		return err
	}
	if change != nil && change.Unchanged(img) {
		m.skippedFrames.Add(1)
		return nil
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if bw, bh := s.buffer.Size(); bw != w || bh != h {
		trace.Logger(ctx).Info("window resized", "width", w, "height", h)
		if err := s.buffer.Resize(ctx, w, h); err != nil {
			return err
		}
		if change != nil {
			change.Reset()
		}
	}

	chunks := make([]matcher.Rect, 0, m.pool.Size())
	for _, c := range matcher.Partition(m.pool.Size(), h, w) {
		if !c.Empty() {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	ctx, span := trace.StartSpan(ctx, "scan_cycle")
	defer func() {
		span.End()
		trace.Logger(ctx).Debug("scan cycle submitted", "span", span)
	}()

	frame, err := s.buffer.Publish(ctx, img, len(chunks))
	if err != nil {
		return err
	}
	span.SetAttr("generation", frame.Generation)
	span.SetAttr("chunks", len(chunks))
	m.generations.Add(1)

	tasks := make([]matcher.Task, len(chunks))
	for i, c := range chunks {
		tasks[i] = matcher.Task{
			Session:     s.id,
			Frame:       frame,
			Chunk:       c,
			Origin:      snap.Origin(),
			Colors:      m.cfg.Colors,
			Tolerance:   m.cfg.Tolerance,
			MinDistance: m.cfg.MinDistance,
			Done:        ctx.Done(),
		}
	}
	return m.pool.Submit(ctx, tasks)
}
