package avplay

import (
	"context"
	"sync"
	"sync/atomic"
)

// gate blocks the run loop between packets while paused.
type gate struct {
	paused atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// set changes the gate state and wakes waiters.
func (g *gate) set(paused bool) {
	g.mu.Lock()
	g.paused.Store(paused)
	g.cond.Broadcast()
	g.mu.Unlock()
}

// wake releases waiters without changing state so they can recheck ctx.
func (g *gate) wake() {
	g.mu.Lock()
	g.cond.Broadcast()
	g.mu.Unlock()
}

// wait returns once the gate is open or ctx is done.
func (g *gate) wait(ctx context.Context) error {
	if !g.paused.Load() {
		return ctx.Err()
	}
	stop := context.AfterFunc(ctx, g.wake)
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused.Load() && ctx.Err() == nil {
		g.cond.Wait()
	}
	return ctx.Err()
}
