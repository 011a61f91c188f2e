package service

import "sync"

// RunGuard tracks linkages with a pass in flight. It is process-local and
// starts empty on every run.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewRunGuard() *RunGuard {
	return &RunGuard{running: make(map[string]struct{})}
}

// TryAcquire marks id as running. It reports false without blocking when a
// pass for id is already in flight.
func (g *RunGuard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[id]; ok {
		return false
	}
	g.running[id] = struct{}{}
	return true
}

// Release clears id. Releasing an id that is not held is a no-op.
func (g *RunGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, id)
}

// Running reports whether a pass for id is in flight.
func (g *RunGuard) Running(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[id]
	return ok
}
