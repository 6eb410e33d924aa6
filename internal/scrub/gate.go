package scrub

import (
	"errors"
	"sync"
)

// ErrGateClosed is returned by enter once shutdown has begun.
var ErrGateClosed = errors.New("scrub: gate closed")

// gate tracks in-flight background work so shutdown can drain it. Once
// closed, no new work may enter; close blocks until all holders leave.
type gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	count  int
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gate) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGateClosed
	}
	g.count++
	return nil
}

func (g *gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count <= 0 {
		panic("scrub: gate leave without enter")
	}
	g.count--
	if g.count == 0 {
		g.cond.Broadcast()
	}
}

// close marks the gate closed and waits for in-flight work to drain.
// Idempotent.
func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for g.count > 0 {
		g.cond.Wait()
	}
}
