package spectrum

import (
	"sync"
	"time"
)

// Renderer draws one magnitude frame. Each frame fully replaces the prior
// render; Clear restores a neutral surface.
type Renderer interface {
	Render(frame []byte)
	Clear()
}

// Pipeline is the per-frame visualization loop. The session controller
// starts it on Recording entry and stops it on Recording exit; it is an
// explicit subscription, not a freestanding loop polling shared state, so no
// frame callback can dangle after a reset.
type Pipeline struct {
	analyzer *Analyzer
	renderer Renderer
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPipeline creates a frame loop polling the analyzer fps times per
// second.
func NewPipeline(analyzer *Analyzer, renderer Renderer, fps int) *Pipeline {
	if fps <= 0 {
		fps = 30
	}
	return &Pipeline{
		analyzer: analyzer,
		renderer: renderer,
		interval: time.Second / time.Duration(fps),
	}
}

// Start begins requesting frames. Idempotent while running.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.done = make(chan struct{})

	p.wg.Add(1)
	go p.loop(p.done)
}

// Stop cancels the frame loop, waits for the in-flight frame, clears the
// rendered surface and drops the analyzer state. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports whether the frame loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) loop(done chan struct{}) {
	defer p.wg.Done()
	defer func() {
		// No frame persists past the recording.
		p.renderer.Clear()
		p.analyzer.Reset()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.renderer.Render(p.analyzer.Snapshot())
		}
	}
}
