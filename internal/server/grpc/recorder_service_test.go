package grpc

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/session"
)

type fakeDevice struct {
	mu         sync.Mutex
	onFragment func(audio.Fragment)
	released   int
}

func (d *fakeDevice) OnFragment(fn func(audio.Fragment)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFragment = fn
}

func (d *fakeDevice) OnStop(fn func()) {}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
	return nil
}

func (d *fakeDevice) Emit(data []byte) {
	d.mu.Lock()
	fn := d.onFragment
	d.mu.Unlock()
	if fn != nil {
		fn(audio.Fragment{Data: data, Timestamp: time.Now()})
	}
}

type fakeAcquirer struct {
	dev *fakeDevice
}

func (a *fakeAcquirer) Acquire(ctx context.Context, cfg audio.CaptureConfig) (audio.Device, error) {
	return a.dev, nil
}

// scriptedStream replays a fixed command sequence and records updates
type scriptedStream struct {
	ctx      context.Context
	commands []*Command
	updates  []*StatusUpdate

	// onCommand runs before each Recv returns, for mid-stream setup
	onCommand func(i int)
}

func (s *scriptedStream) Send(u *StatusUpdate) error {
	s.updates = append(s.updates, u)
	return nil
}

func (s *scriptedStream) Recv() (*Command, error) {
	if len(s.commands) == 0 {
		return nil, io.EOF
	}
	if s.onCommand != nil {
		s.onCommand(len(s.updates))
	}
	cmd := s.commands[0]
	s.commands = s.commands[1:]
	return cmd, nil
}

func (s *scriptedStream) Context() context.Context { return s.ctx }

func testService(t *testing.T) (*RecorderService, *fakeDevice, *session.Controller, func(time.Duration)) {
	t.Helper()
	dev := &fakeDevice{}

	base := time.Now()
	var mu sync.Mutex
	offset := time.Duration(0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return base.Add(offset)
	}
	advance := func(d time.Duration) {
		mu.Lock()
		offset += d
		mu.Unlock()
	}

	ctrl := session.New(session.Config{
		MinDuration:  time.Second,
		MaxDuration:  10 * time.Second,
		TickInterval: time.Millisecond,
	}, &fakeAcquirer{dev: dev}, session.WithClock(clock))

	return NewRecorderService(ctrl), dev, ctrl, advance
}

func TestControlStartStopRoundTrip(t *testing.T) {
	svc, dev, _, advance := testService(t)

	stream := &scriptedStream{
		ctx:      context.Background(),
		commands: []*Command{{Name: CommandStart}, {Name: CommandStop}},
		onCommand: func(i int) {
			if i == 1 {
				// Between start and stop: feed audio and pass the minimum
				dev.Emit(make([]byte, 6400))
				advance(1500 * time.Millisecond)
				// Let a governor tick observe the new elapsed time
				time.Sleep(20 * time.Millisecond)
			}
		},
	}

	require.NoError(t, svc.Control(stream))
	require.Len(t, stream.updates, 2)

	assert.Equal(t, "recording", stream.updates[0].State)
	assert.Empty(t, stream.updates[0].Error)

	final := stream.updates[1]
	assert.Equal(t, "completed", final.State)
	assert.Equal(t, int64(1500), final.DurationMs)
	assert.Equal(t, audio.MediaTypeWave, final.MediaType)
	assert.Len(t, final.Artifact, 6400)
	assert.Empty(t, final.Error)
}

func TestControlStopBeforeMinimumReports(t *testing.T) {
	svc, dev, ctrl, advance := testService(t)

	stream := &scriptedStream{
		ctx:      context.Background(),
		commands: []*Command{{Name: CommandStart}, {Name: CommandStop}},
		onCommand: func(i int) {
			if i == 1 {
				dev.Emit(make([]byte, 640))
				advance(300 * time.Millisecond)
				time.Sleep(20 * time.Millisecond)
			}
		},
	}

	require.NoError(t, svc.Control(stream))
	require.Len(t, stream.updates, 2)

	rejected := stream.updates[1]
	assert.Equal(t, "recording", rejected.State, "session keeps recording")
	assert.Contains(t, rejected.Error, "too short")

	// Stream teardown resets the held session
	assert.Equal(t, session.StateIdle, ctrl.State())
	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, 1, dev.released)
}

func TestControlUnknownCommand(t *testing.T) {
	svc, _, _, _ := testService(t)

	stream := &scriptedStream{
		ctx:      context.Background(),
		commands: []*Command{{Name: "rewind"}},
	}

	require.NoError(t, svc.Control(stream))
	require.Len(t, stream.updates, 1)
	assert.Contains(t, stream.updates[0].Error, "unknown command")
	assert.Equal(t, "idle", stream.updates[0].State)
}

func TestControlStatusIsReadOnly(t *testing.T) {
	svc, _, ctrl, _ := testService(t)

	stream := &scriptedStream{
		ctx:      context.Background(),
		commands: []*Command{{Name: CommandStatus}},
	}

	require.NoError(t, svc.Control(stream))
	require.Len(t, stream.updates, 1)
	assert.Equal(t, "idle", stream.updates[0].State)
	assert.Equal(t, session.StateIdle, ctrl.State())
}

func TestControlRecordBlocksUntilCeiling(t *testing.T) {
	svc, dev, _, advance := testService(t)

	go func() {
		// Drive the session past the ceiling while record blocks
		for i := 0; i < 12; i++ {
			dev.Emit(make([]byte, 3200))
			advance(time.Second)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	stream := &scriptedStream{
		ctx:      context.Background(),
		commands: []*Command{{Name: CommandRecord}},
	}

	require.NoError(t, svc.Control(stream))
	require.Len(t, stream.updates, 1)

	final := stream.updates[0]
	assert.Equal(t, "completed", final.State)
	assert.Equal(t, int64(10000), final.DurationMs)
	assert.NotEmpty(t, final.Artifact)
}
