package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoAcquirer opens microphone devices through malgo/miniaudio.
type MalgoAcquirer struct{}

// NewMalgoAcquirer creates a malgo-backed device acquirer.
func NewMalgoAcquirer() *MalgoAcquirer {
	return &MalgoAcquirer{}
}

// Acquire initializes the backend, opens the capture device described by cfg
// and starts it streaming. The returned Device owns the malgo context and
// frees it on Release.
func (a *MalgoAcquirer) Acquire(ctx context.Context, cfg CaptureConfig) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: backend init failed: %v", ErrDeviceUnavailable, err)
	}

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil || len(infos) == 0 {
		malgoCtx.Uninit()
		malgoCtx.Free()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return nil, ErrDeviceUnavailable
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16 // 16-bit signed integer
	deviceConfig.Capture.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = cfg.BufferFrames

	d := &malgoDevice{malgoContext: malgoCtx}

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSample, pInputSamples []byte, framecount uint32) {
		fn := d.fragmentFn.Load()
		if fn == nil {
			// No consumer wired yet; the session has not started.
			return
		}
		// Copy the input samples, malgo reuses the buffer
		dataCopy := make([]byte, len(pInputSamples))
		copy(dataCopy, pInputSamples)

		(*fn)(Fragment{
			Data:      dataCopy,
			Timestamp: time.Now(),
			Frames:    framecount,
		})
	}
	callbacks.Stop = func() {
		if d.released.Load() {
			// Stop initiated by Release, not a device loss.
			return
		}
		if fn := d.stopFn.Load(); fn != nil {
			(*fn)()
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		// The OS surfaces denied microphone access as a device init failure.
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	return d, nil
}

// malgoDevice implements Device on top of a started malgo capture device.
type malgoDevice struct {
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext

	fragmentFn atomic.Pointer[func(Fragment)]
	stopFn     atomic.Pointer[func()]

	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

func (d *malgoDevice) OnFragment(fn func(Fragment)) {
	d.fragmentFn.Store(&fn)
}

func (d *malgoDevice) OnStop(fn func()) {
	d.stopFn.Store(&fn)
}

// Release stops the hardware stream and frees the device and backend
// context. Safe to call any number of times.
func (d *malgoDevice) Release() error {
	d.releaseOnce.Do(func() {
		d.released.Store(true)

		if d.device != nil {
			if err := d.device.Stop(); err != nil {
				d.releaseErr = fmt.Errorf("failed to stop device: %w", err)
			}
			d.device.Uninit()
		}

		if d.malgoContext != nil {
			d.malgoContext.Uninit()
			d.malgoContext.Free()
		}
	})
	return d.releaseErr
}
