package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmett/veris/internal/audio"
)

// FrameLoop is the visualization pipeline lifecycle as the controller sees
// it: started on every Recording entry, stopped on every Recording exit.
type FrameLoop interface {
	Start()
	Stop()
}

// Config carries the duration policy and capture constraints for sessions
// created by one controller.
type Config struct {
	// MinDuration is the shortest acceptable sample. A stop request before
	// this threshold is rejected and the session keeps recording.
	MinDuration time.Duration

	// MaxDuration is the recording ceiling. Reaching it finalizes the
	// session automatically, bypassing the minimum guard.
	MaxDuration time.Duration

	// TickInterval is the duration governor's tick period.
	TickInterval time.Duration

	// Capture holds the device constraints for every acquisition.
	Capture audio.CaptureConfig
}

// DefaultConfig returns the voice-sample policy: 1s minimum, 10s ceiling,
// 100ms ticks.
func DefaultConfig() Config {
	return Config{
		MinDuration:  time.Second,
		MaxDuration:  10 * time.Second,
		TickInterval: 100 * time.Millisecond,
		Capture:      audio.DefaultCaptureConfig(),
	}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock overrides the monotonic clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithFrameLoop attaches a visualization pipeline to the session lifecycle.
func WithFrameLoop(fl FrameLoop) Option {
	return func(c *Controller) { c.frames = fl }
}

// WithFragmentTap registers an observer fed every fragment captured while
// recording, e.g. a frequency analyzer. The tap never affects the artifact.
func WithFragmentTap(tap func(audio.Fragment)) Option {
	return func(c *Controller) { c.tap = tap }
}

// WithTransitionHook registers a callback invoked on every state transition.
// The hook runs with the session locked and must not call back into the
// controller.
func WithTransitionHook(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// WithElapsedHook registers a callback invoked on every governor tick with
// the recomputed elapsed duration.
func WithElapsedHook(fn func(time.Duration)) Option {
	return func(c *Controller) { c.onElapsed = fn }
}

// Controller owns the single live recording session: it acquires the device,
// routes fragments to the accumulator, enforces the duration policy through
// the governor, and drives the visualization pipeline. All mutation of the
// session record is serialized through one mutex, so concurrent device
// callbacks, governor ticks and caller commands cannot interleave.
type Controller struct {
	cfg Config
	acq audio.Acquirer
	log *zap.Logger
	now func() time.Time

	frames       FrameLoop
	tap          func(audio.Fragment)
	onTransition func(Snapshot)
	onElapsed    func(time.Duration)

	mu        sync.Mutex
	id        string
	state     State
	device    audio.Device
	acc       *audio.Accumulator
	gov       *Governor
	startedAt time.Time
	elapsed   time.Duration
	result    *Result
	lastErr   error
	finalized bool
}

// New creates a controller with the given policy and device acquirer.
func New(cfg Config, acq audio.Acquirer, opts ...Option) *Controller {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = time.Second
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}

	c := &Controller{
		cfg:   cfg,
		acq:   acq,
		log:   zap.NewNop(),
		now:   time.Now,
		acc:   audio.NewAccumulator(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new recording session. It clears the previous attempt's
// artifact and error, requests device access (blocking until the host grants
// or denies it) and, on grant, starts the governor tick and the frame loop.
// Starting while a session is live is rejected.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.live() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("a recording session is already live (%s)", state)
	}

	// Implicit reset of the prior attempt.
	c.id = uuid.NewString()
	c.result = nil
	c.lastErr = nil
	c.elapsed = 0
	c.startedAt = time.Time{}
	c.acc.Reset()
	c.finalized = false
	c.setStateLocked(StateAcquiring)

	captureCfg := c.cfg.Capture
	id := c.id
	c.mu.Unlock()

	c.log.Debug("acquiring capture device", zap.String("session", id))
	dev, err := c.acq.Acquire(ctx, captureCfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastErr = err
		c.setStateLocked(StateFailed)
		c.log.Warn("device acquisition failed", zap.String("session", id), zap.Error(err))
		return err
	}

	if c.state != StateAcquiring || c.id != id {
		// Reset arrived while we waited for the grant; hand the device back.
		_ = dev.Release()
		return fmt.Errorf("session was reset during acquisition")
	}

	c.device = dev
	c.startedAt = c.now()
	c.elapsed = 0

	dev.OnFragment(c.handleFragment)
	dev.OnStop(c.handleDeviceStop)

	c.gov = NewGovernor(c.cfg.TickInterval)
	c.gov.Start(c.handleTick)
	if c.frames != nil {
		c.frames.Start()
	}

	c.setStateLocked(StateRecording)
	c.log.Info("recording started",
		zap.String("session", id),
		zap.Uint32("sample_rate", captureCfg.SampleRate))
	return nil
}

// Stop finalizes the live recording. A stop before MinDuration is rejected
// with a TooShortError and the session keeps recording; at or past the
// minimum the artifact is assembled, the device released, and the session
// reported Completed.
func (c *Controller) Stop() (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return nil, fmt.Errorf("no active recording to stop (state %s)", c.state)
	}

	c.elapsed = c.now().Sub(c.startedAt)
	if c.elapsed < c.cfg.MinDuration {
		err := &TooShortError{Elapsed: c.elapsed, Min: c.cfg.MinDuration}
		c.lastErr = err
		c.notifyLocked()
		c.log.Debug("stop rejected", zap.String("session", c.id), zap.Error(err))
		return nil, err
	}

	c.finalizeLocked(nil)
	return c.result, nil
}

// Reset is the cancellation primitive. A live session is torn down first,
// bypassing the minimum-duration guard; then the artifact, error, elapsed
// time and buffered chunks are cleared and the controller returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if (c.state == StateRecording || c.state == StateStopping) && !c.finalized {
		c.finalized = true
		c.teardownLocked()
	}
	// For StateAcquiring the grant is still pending: Start's return path
	// notices the reset and releases the device immediately.

	c.id = ""
	c.result = nil
	c.lastErr = nil
	c.elapsed = 0
	c.startedAt = time.Time{}
	c.acc.Reset()
	c.finalized = false
	c.setStateLocked(StateIdle)
	c.log.Debug("session reset")
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the last computed recording duration.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Result returns the completed sample, or nil unless state is Completed.
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the failure or rejection reason of the current attempt.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the externally observable session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// handleFragment buffers device fragments in arrival order and forwards them
// to the analyzer tap. Fragments outside Recording/Stopping are dropped.
func (c *Controller) handleFragment(f audio.Fragment) {
	c.mu.Lock()
	buffering := c.state == StateRecording || c.state == StateStopping
	feeding := c.state == StateRecording
	if buffering {
		c.acc.Append(f.Data)
	}
	tap := c.tap
	c.mu.Unlock()

	if feeding && tap != nil {
		tap(f)
	}
}

// handleTick recomputes the elapsed duration and enforces the recording
// ceiling. A session that reaches MaxDuration is always an acceptable
// length, so the minimum guard is skipped.
func (c *Controller) handleTick() {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}

	c.elapsed = c.now().Sub(c.startedAt)
	elapsed := c.elapsed
	if elapsed >= c.cfg.MaxDuration {
		c.log.Info("max duration reached", zap.String("session", c.id), zap.Duration("elapsed", elapsed))
		c.finalizeLocked(nil)
		c.mu.Unlock()
		return
	}
	onElapsed := c.onElapsed
	c.mu.Unlock()

	if onElapsed != nil {
		onElapsed(elapsed)
	}
}

// handleDeviceStop reacts to the stream ending without us releasing it. The
// session fails rather than silently producing a truncated artifact.
func (c *Controller) handleDeviceStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized || c.state != StateRecording {
		return
	}
	c.log.Warn("capture device lost mid-session", zap.String("session", c.id))
	c.finalizeLocked(audio.ErrDeviceLost)
}

// finalizeLocked is the single stop path shared by manual stop, the
// governor's auto-stop and device loss. It is guarded so a racing second
// stop is a no-op: the device is released exactly once and the artifact is
// fully assembled before the state reports Completed.
func (c *Controller) finalizeLocked(cause error) {
	if c.finalized {
		return
	}
	c.finalized = true

	c.setStateLocked(StateStopping)
	c.teardownLocked()
	c.elapsed = c.now().Sub(c.startedAt)
	if c.elapsed > c.cfg.MaxDuration {
		c.elapsed = c.cfg.MaxDuration
	}

	if cause != nil {
		c.lastErr = cause
		c.setStateLocked(StateFailed)
		c.log.Warn("recording failed", zap.String("session", c.id), zap.Error(cause))
		return
	}

	artifact := c.acc.Assemble()
	c.result = &Result{
		Artifact:   artifact,
		MediaType:  audio.MediaTypeWave,
		DurationMs: c.elapsed.Milliseconds(),
	}
	c.lastErr = nil
	c.setStateLocked(StateCompleted)
	c.log.Info("recording completed",
		zap.String("session", c.id),
		zap.Int64("duration_ms", c.result.DurationMs),
		zap.Int("bytes", len(artifact)))
}

// teardownLocked cancels the governor and frame loop and releases the
// device. Every exit from Acquiring/Recording funnels through here.
func (c *Controller) teardownLocked() {
	if c.gov != nil {
		c.gov.Stop()
		c.gov = nil
	}
	if c.frames != nil {
		c.frames.Stop()
	}
	if c.device != nil {
		_ = c.device.Release()
		c.device = nil
	}
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	if c.onTransition != nil {
		c.onTransition(c.snapshotLocked())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:      c.id,
		State:   c.state,
		Elapsed: c.elapsed,
		Err:     c.lastErr,
	}
}
