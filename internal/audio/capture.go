package audio

import (
	"context"
	"errors"
	"time"
)

// CaptureConfig holds the fixed constraints a recording session acquires the
// microphone with. The defaults target downstream voice-biometric
// processing, which expects 16kHz mono PCM.
type CaptureConfig struct {
	// SampleRate is the number of samples per second (Hz)
	SampleRate uint32

	// Channels is the number of audio channels (1 = mono)
	Channels uint32

	// BitDepth is the number of bits per sample
	BitDepth uint32

	// BufferFrames is the number of frames per fragment
	// Smaller = lower latency, higher CPU usage
	BufferFrames uint32

	// EchoCancellation, NoiseSuppression and AutoGain request the
	// corresponding device-side processing where the backend supports it
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool

	// DeviceID is the audio device identifier
	// Empty string = use default device
	DeviceID string
}

// DefaultCaptureConfig returns the constraint set used for voice samples.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       16000, // what the enrollment backend ingests
		Channels:         1,     // Mono
		BitDepth:         16,    // 16-bit
		BufferFrames:     480,   // 30ms at 16kHz
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGain:         true,
		DeviceID:         "",
	}
}

// Fragment is one chunk of encoded audio emitted by the capture device
// during recording. Fragments arrive in emission order.
type Fragment struct {
	Data      []byte    // Raw audio data
	Timestamp time.Time // When the fragment was captured
	Frames    uint32    // Number of audio frames in this fragment
}

// Acquisition failure modes. The session controller distinguishes these when
// reporting why an attempt failed.
var (
	// ErrPermissionDenied means the host refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable means no usable capture device exists.
	ErrDeviceUnavailable = errors.New("no capture device available")

	// ErrDeviceLost means the device disappeared mid-session.
	ErrDeviceLost = errors.New("capture device lost")
)

// Device is a live, exclusively-owned microphone stream. Callbacks are set
// once, before the device starts streaming; Release is safe to call
// repeatedly and always stops the underlying hardware tracks.
type Device interface {
	// OnFragment registers the callback invoked for every captured fragment
	OnFragment(fn func(Fragment))

	// OnStop registers the callback invoked when the stream ends without
	// Release being called (device unplugged, backend teardown)
	OnStop(fn func())

	// Release stops capture and frees the device. Idempotent.
	Release() error
}

// Acquirer opens capture devices. Acquire blocks until the device is granted
// or the attempt fails; cancel via ctx.
type Acquirer interface {
	Acquire(ctx context.Context, cfg CaptureConfig) (Device, error)
}
