package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett/veris/internal/audio"
)

// fakeDevice is a scriptable capture device that counts Release calls.
type fakeDevice struct {
	mu         sync.Mutex
	onFragment func(audio.Fragment)
	onStop     func()
	releases   int32
}

func (d *fakeDevice) OnFragment(fn func(audio.Fragment)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFragment = fn
}

func (d *fakeDevice) OnStop(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStop = fn
}

func (d *fakeDevice) Release() error {
	atomic.AddInt32(&d.releases, 1)
	return nil
}

func (d *fakeDevice) Releases() int {
	return int(atomic.LoadInt32(&d.releases))
}

// Emit pushes one fragment as the hardware callback would.
func (d *fakeDevice) Emit(data []byte) {
	d.mu.Lock()
	fn := d.onFragment
	d.mu.Unlock()
	if fn != nil {
		fn(audio.Fragment{Data: data, Timestamp: time.Now(), Frames: uint32(len(data) / 2)})
	}
}

// Lose simulates the device disappearing mid-session.
func (d *fakeDevice) Lose() {
	d.mu.Lock()
	fn := d.onStop
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeAcquirer struct {
	mu      sync.Mutex
	dev     *fakeDevice
	err     error
	gate    chan struct{} // when non-nil, Acquire blocks until closed
	acquire int
}

func (a *fakeAcquirer) Acquire(ctx context.Context, cfg audio.CaptureConfig) (audio.Device, error) {
	a.mu.Lock()
	gate := a.gate
	a.acquire++
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.dev, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeFrameLoop struct {
	starts int32
	stops  int32
}

func (f *fakeFrameLoop) Start() { atomic.AddInt32(&f.starts, 1) }
func (f *fakeFrameLoop) Stop()  { atomic.AddInt32(&f.stops, 1) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond // real ticks, fake elapsed
	return cfg
}

func newTestController(t *testing.T, acq audio.Acquirer, clock *fakeClock, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(testConfig(), acq, opts...)
}

func fragment(val byte, length int) []byte {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = val
	}
	return buf
}

func TestStopScenarioMinimumThenComplete(t *testing.T) {
	dev := &fakeDevice{}
	acq := &fakeAcquirer{dev: dev}
	clock := newFakeClock()
	ctrl := newTestController(t, acq, clock)

	require.NoError(t, ctrl.Start(context.Background()))
	require.Equal(t, StateRecording, ctrl.State())

	// Three fragments of 400ms-equivalent audio each.
	for i := 1; i <= 3; i++ {
		dev.Emit(fragment(byte(i), 12800))
	}

	// Stop at t=900ms: below the 1s minimum, rejected, still recording.
	clock.Advance(900 * time.Millisecond)
	res, err := ctrl.Stop()
	require.Nil(t, res)
	var tooShort *TooShortError
	require.ErrorAs(t, err, &tooShort)
	assert.Contains(t, err.Error(), "1s")
	assert.Equal(t, StateRecording, ctrl.State())
	assert.Equal(t, 0, dev.Releases())
	assert.Error(t, ctrl.Err())

	// Stop at t=1300ms: accepted.
	clock.Advance(400 * time.Millisecond)
	res, err = ctrl.Stop()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StateCompleted, ctrl.State())
	assert.Equal(t, int64(1300), res.DurationMs)
	assert.Equal(t, audio.MediaTypeWave, res.MediaType)
	assert.NoError(t, ctrl.Err(), "rejection error cleared by successful stop")

	// Artifact is the concatenation of the three fragments, in order.
	require.Len(t, res.Artifact, 3*12800)
	for i := 0; i < 3; i++ {
		assert.Equal(t, byte(i+1), res.Artifact[i*12800], "fragment %d out of order", i)
	}

	assert.Equal(t, 1, dev.Releases(), "device released exactly once")

	// A second stop on a finished session is rejected.
	_, err = ctrl.Stop()
	require.Error(t, err)
	assert.Equal(t, 1, dev.Releases())
}

func TestStopBoundaryIsInclusive(t *testing.T) {
	t.Run("one millisecond short is rejected", func(t *testing.T) {
		dev := &fakeDevice{}
		clock := newFakeClock()
		ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
		require.NoError(t, ctrl.Start(context.Background()))

		clock.Advance(999 * time.Millisecond)
		_, err := ctrl.Stop()
		var tooShort *TooShortError
		require.ErrorAs(t, err, &tooShort)
		assert.Equal(t, StateRecording, ctrl.State())
	})

	t.Run("exactly the minimum succeeds", func(t *testing.T) {
		dev := &fakeDevice{}
		clock := newFakeClock()
		ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
		require.NoError(t, ctrl.Start(context.Background()))

		clock.Advance(1000 * time.Millisecond)
		res, err := ctrl.Stop()
		require.NoError(t, err)
		assert.Equal(t, int64(1000), res.DurationMs)
		assert.Equal(t, StateCompleted, ctrl.State())
	})
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
	require.NoError(t, ctrl.Start(context.Background()))

	dev.Emit(fragment(0x11, 640))
	dev.Emit(fragment(0x22, 640))

	// No manual stop: the governor's tick reaches the 10s ceiling.
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return ctrl.State() == StateCompleted
	}, 2*time.Second, 2*time.Millisecond, "governor must auto-stop at max duration")

	res := ctrl.Result()
	require.NotNil(t, res)
	assert.Equal(t, int64(10000), res.DurationMs)
	assert.Len(t, res.Artifact, 2*640, "all buffered fragments assembled")
	assert.Equal(t, 1, dev.Releases())
}

func TestAcquisitionDenied(t *testing.T) {
	denied := fmt.Errorf("%w: user dismissed the prompt", audio.ErrPermissionDenied)
	acq := &fakeAcquirer{err: denied}
	clock := newFakeClock()
	ctrl := newTestController(t, acq, clock)

	err := ctrl.Start(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, audio.ErrPermissionDenied)

	assert.Equal(t, StateFailed, ctrl.State())
	assert.ErrorIs(t, ctrl.Err(), audio.ErrPermissionDenied)
	assert.Nil(t, ctrl.Result())

	// Nothing was acquired, so nothing may be released.
	dev := &fakeDevice{}
	acq.mu.Lock()
	acq.err = nil
	acq.dev = dev
	acq.mu.Unlock()
	assert.Equal(t, 0, dev.Releases())

	// A fresh start recovers without an explicit reset.
	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, StateRecording, ctrl.State())
	assert.NoError(t, ctrl.Err())
}

func TestDeviceLostMidRecording(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
	require.NoError(t, ctrl.Start(context.Background()))

	dev.Emit(fragment(0x01, 320))
	clock.Advance(500 * time.Millisecond)
	dev.Lose()

	assert.Equal(t, StateFailed, ctrl.State())
	assert.ErrorIs(t, ctrl.Err(), audio.ErrDeviceLost)
	assert.Nil(t, ctrl.Result(), "no truncated artifact on device loss")
	assert.Equal(t, 1, dev.Releases())

	// A late stop callback must not double-release.
	dev.Lose()
	assert.Equal(t, 1, dev.Releases())
}

func TestResetReturnsToIdleFromEveryState(t *testing.T) {
	t.Run("from recording bypasses the minimum guard", func(t *testing.T) {
		dev := &fakeDevice{}
		clock := newFakeClock()
		ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
		require.NoError(t, ctrl.Start(context.Background()))
		dev.Emit(fragment(0x01, 320))
		clock.Advance(100 * time.Millisecond) // far below the minimum

		ctrl.Reset()
		assert.Equal(t, StateIdle, ctrl.State())
		assert.Nil(t, ctrl.Result())
		assert.NoError(t, ctrl.Err())
		assert.Zero(t, ctrl.Elapsed())
		assert.Equal(t, 1, dev.Releases())
	})

	t.Run("from completed", func(t *testing.T) {
		dev := &fakeDevice{}
		clock := newFakeClock()
		ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
		require.NoError(t, ctrl.Start(context.Background()))
		clock.Advance(2 * time.Second)
		_, err := ctrl.Stop()
		require.NoError(t, err)

		ctrl.Reset()
		assert.Equal(t, StateIdle, ctrl.State())
		assert.Nil(t, ctrl.Result())
		assert.Equal(t, 1, dev.Releases(), "reset after completion must not re-release")
	})

	t.Run("from failed", func(t *testing.T) {
		ctrl := newTestController(t, &fakeAcquirer{err: audio.ErrDeviceUnavailable}, newFakeClock())
		require.Error(t, ctrl.Start(context.Background()))

		ctrl.Reset()
		assert.Equal(t, StateIdle, ctrl.State())
		assert.NoError(t, ctrl.Err())
	})

	t.Run("from idle is a no-op", func(t *testing.T) {
		ctrl := newTestController(t, &fakeAcquirer{dev: &fakeDevice{}}, newFakeClock())
		ctrl.Reset()
		assert.Equal(t, StateIdle, ctrl.State())
	})
}

func TestResetDuringAcquisitionReleasesGrantedDevice(t *testing.T) {
	dev := &fakeDevice{}
	gate := make(chan struct{})
	acq := &fakeAcquirer{dev: dev, gate: gate}
	ctrl := newTestController(t, acq, newFakeClock())

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return ctrl.State() == StateAcquiring
	}, time.Second, time.Millisecond)

	ctrl.Reset()
	assert.Equal(t, StateIdle, ctrl.State())

	close(gate) // the grant arrives after the reset
	err := <-errCh
	require.Error(t, err)
	assert.Equal(t, 1, dev.Releases(), "late-granted device must be handed back")
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestStartWhileLiveIsRejected(t *testing.T) {
	dev := &fakeDevice{}
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, newFakeClock())
	require.NoError(t, ctrl.Start(context.Background()))

	err := ctrl.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already live")
	assert.Equal(t, StateRecording, ctrl.State())
}

func TestConcurrentStopAndAutoStopFinalizeOnce(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock)
	require.NoError(t, ctrl.Start(context.Background()))

	clock.Advance(10 * time.Second) // ticks will auto-stop any moment now

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.Stop() // racing the governor; losers get a state error
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return ctrl.State() == StateCompleted
	}, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, dev.Releases(), "finalize must be idempotent")
	assert.NotNil(t, ctrl.Result())
}

func TestFrameLoopFollowsRecordingLifecycle(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()
	frames := &fakeFrameLoop{}
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock, WithFrameLoop(frames))

	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&frames.starts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&frames.stops))

	clock.Advance(2 * time.Second)
	_, err := ctrl.Stop()
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&frames.stops), "pipeline stopped on recording exit")
}

func TestFragmentTapObservesWithoutAffectingArtifact(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()
	var tapped int32
	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock,
		WithFragmentTap(func(f audio.Fragment) { atomic.AddInt32(&tapped, 1) }))

	require.NoError(t, ctrl.Start(context.Background()))
	dev.Emit(fragment(0x01, 320))
	dev.Emit(fragment(0x02, 320))

	clock.Advance(2 * time.Second)
	res, err := ctrl.Stop()
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&tapped))
	assert.Len(t, res.Artifact, 2*320)

	// Fragments after the stop reach neither the tap nor the artifact.
	dev.Emit(fragment(0x03, 320))
	assert.Equal(t, int32(2), atomic.LoadInt32(&tapped))
	assert.Len(t, ctrl.Result().Artifact, 2*320)
}

func TestTransitionHookSeesEveryTransition(t *testing.T) {
	dev := &fakeDevice{}
	clock := newFakeClock()

	var mu sync.Mutex
	var states []State
	hook := func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	ctrl := newTestController(t, &fakeAcquirer{dev: dev}, clock, WithTransitionHook(hook))
	require.NoError(t, ctrl.Start(context.Background()))
	clock.Advance(2 * time.Second)
	_, err := ctrl.Stop()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 4)
	assert.Equal(t, StateAcquiring, states[0])
	assert.Equal(t, StateRecording, states[1])
	assert.Equal(t, StateCompleted, states[len(states)-1])
}

func TestErrorsAreTyped(t *testing.T) {
	err := error(&TooShortError{Elapsed: 900 * time.Millisecond, Min: time.Second})
	var tooShort *TooShortError
	require.True(t, errors.As(err, &tooShort))
	assert.Contains(t, err.Error(), "900ms")
	assert.Contains(t, err.Error(), "1s")
}
