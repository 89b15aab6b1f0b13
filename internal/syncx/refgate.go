package syncx

import (
	"context"
	"sync"
)

// RefGate counts outstanding readers of a shared resource and lets a writer
// wait until none remain. The idle channel is closed exactly while the count
// is zero, so waiters can select on it alongside a context.
type RefGate struct {
	mu      sync.Mutex
	readers int
	idle    chan struct{}
}

// NewRefGate returns an idle gate.
func NewRefGate() *RefGate {
	idle := make(chan struct{})
	close(idle)
	return &RefGate{idle: idle}
}

// Acquire registers n readers. n <= 0 is a no-op.
func (g *RefGate) Acquire(n int) {
	if n <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readers == 0 {
		g.idle = make(chan struct{})
	}
	g.readers += n
}

// Release drops one reader. Releasing an idle gate does nothing.
func (g *RefGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readers == 0 {
		return
	}
	g.readers--
	if g.readers == 0 {
		close(g.idle)
	}
}

// Active returns the number of outstanding readers.
func (g *RefGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readers
}

// Idle returns a channel closed once no readers remain.
// The channel reflects the state at call time; re-check after it fires.
func (g *RefGate) Idle() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idle
}

// Wait blocks until the gate is idle or ctx is done.
func (g *RefGate) Wait(ctx context.Context) error {
	for {
		idle := g.Idle()
		select {
		case <-idle:
			if g.Active() == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
