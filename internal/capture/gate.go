package capture

import "sync/atomic"

// Gate is a non-blocking mutual-exclusion gate used by analyzers to shed
// frames: if an analysis of an earlier frame is still running when a new
// frame arrives, TryAcquire fails and the new frame is dropped. Backpressure
// is handled by shedding, never by queueing or blocking the capture loop.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire attempts to take the gate. Returns false if it is already held.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Held reports whether the gate is currently taken.
func (g *Gate) Held() bool {
	return g.busy.Load()
}
