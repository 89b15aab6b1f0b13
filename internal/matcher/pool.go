package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

// Pool is a fixed set of matcher goroutines that live for the pipeline's
// lifetime. Every submitted Task's frame reference is released exactly once,
// whether the task runs, fails, or is discarded.
type Pool struct {
	size    int
	tasks   chan Task
	results chan Result
	quit    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	submitMu  sync.RWMutex // held shared by Submit, exclusively by Close
	closed    bool

	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewPool starts size workers.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:    size,
		tasks:   make(chan Task, size*TaskQueueFactor),
		results: make(chan Result, size*TaskQueueFactor*2),
		quit:    make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int { return p.size }

// Results delivers one Result per executed Task. It is closed by Close.
func (p *Pool) Results() <-chan Result { return p.results }

// Submit queues tasks without waiting for their results. If ctx ends or the
// pool closes first, the unsent tasks' frame references are released.
func (p *Pool) Submit(ctx context.Context, tasks []Task) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		releaseAll(tasks)
		return apperr.New(apperr.CodeUnavailable, "matcher pool closed")
	}
	for i, t := range tasks {
		select {
		case p.tasks <- t:
		case <-ctx.Done():
			releaseAll(tasks[i:])
			return ctx.Err()
		case <-p.quit:
			releaseAll(tasks[i:])
			return apperr.New(apperr.CodeUnavailable, "matcher pool closed")
		}
	}
	return nil
}

// Stats returns executed and failed task counts.
func (p *Pool) Stats() (processed, failed uint64) {
	return p.processed.Load(), p.failed.Load()
}

// Close stops the workers, releases queued tasks and closes Results.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		// Wait out in-flight Submits; they return promptly once quit is closed.
		p.submitMu.Lock()
		p.closed = true
		p.submitMu.Unlock()
		p.wg.Wait()
		for {
			select {
			case t := <-p.tasks:
				t.Frame.Release()
			default:
				close(p.results)
				return
			}
		}
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case t := <-p.tasks:
			res := p.run(id, t)
			select {
			case p.results <- res:
			case <-p.quit:
				return
			}
		}
	}
}

// run executes one task. A panic is contained to this chunk and reported as
// a ChunkFailed result.
func (p *Pool) run(id int, t Task) (res Result) {
	res = Result{Session: t.Session, Chunk: t.Chunk, Origin: t.Origin}
	if t.Frame != nil {
		res.Generation = t.Frame.Generation
	}
	defer t.Frame.Release()
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			slog.Warn("matcher worker panic", "worker", id, "chunk", t.Chunk, "panic", r, "stack", string(debug.Stack()))
			res.Points = nil
			res.Err = apperr.Newf(apperr.CodeChunkFailed, "chunk %v: %v", t.Chunk.Bounds(), r).
				WithMetadata("worker", fmt.Sprint(id))
		}
	}()

	p.processed.Add(1)
	points, err := Match(t)
	if err != nil {
		if !errors.Is(err, errAborted) {
			p.failed.Add(1)
		}
		res.Err = err
		return res
	}
	res.Points = points
	return res
}

func releaseAll(tasks []Task) {
	for _, t := range tasks {
		t.Frame.Release()
	}
}
