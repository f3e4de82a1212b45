package session

import (
	"sync"
	"time"
)

// Governor drives the periodic duration tick while a recording is active.
// The controller recomputes elapsed time on every tick and enforces the
// min/max duration policy; the governor only owns the timer.
type Governor struct {
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewGovernor creates a governor ticking at the given interval.
func NewGovernor(interval time.Duration) *Governor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Governor{interval: interval}
}

// Start begins invoking onTick at the configured interval. Starting an
// already running governor is a no-op.
func (g *Governor) Start(onTick func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}
	g.running = true
	g.done = make(chan struct{})

	go func(done chan struct{}) {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				onTick()
			}
		}
	}(g.done)
}

// Stop cancels the tick. Idempotent; safe to call when no tick is active.
// It signals the tick goroutine and returns without waiting, so it may be
// called from inside a tick callback.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return
	}
	g.running = false
	close(g.done)
}

// Running reports whether the tick is active.
func (g *Governor) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
