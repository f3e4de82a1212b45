package spectrum

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// AnalyzerConfig tunes the frequency analyzer. The defaults reproduce the
// byte-frequency contract the UI layer renders against: fixed-size frames of
// magnitudes scaled 0-255, dB-mapped and smoothed between frames.
type AnalyzerConfig struct {
	// FFTSize is the analysis window length in samples (power of two).
	FFTSize int

	// Bins is the fixed frame length every Snapshot returns.
	Bins int

	// Smoothing blends the previous frame into the current one (0..1,
	// higher = smoother).
	Smoothing float64

	// MinDB and MaxDB bound the decibel range mapped onto 0..255.
	MinDB float64
	MaxDB float64
}

// DefaultAnalyzerConfig returns the visualization defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		FFTSize:   1024,
		Bins:      64,
		Smoothing: 0.8,
		MinDB:     -100,
		MaxDB:     -30,
	}
}

// Analyzer is a frequency-domain analyzer bound to the live audio stream.
// Fragments are fed as they arrive; Snapshot produces one magnitude frame on
// demand. It never touches the recorded artifact.
type Analyzer struct {
	cfg AnalyzerConfig
	fft *fourier.FFT

	mu       sync.Mutex
	ring     *sampleRing
	scratch  []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyzer creates an analyzer with the given configuration.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = 1024
	}
	if cfg.Bins <= 0 {
		cfg.Bins = 64
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = 0.8
	}
	if cfg.MinDB >= cfg.MaxDB {
		cfg.MinDB, cfg.MaxDB = -100, -30
	}

	return &Analyzer{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.FFTSize),
		ring:     newSampleRing(cfg.FFTSize * 2),
		scratch:  make([]float64, cfg.FFTSize),
		coeffs:   make([]complex128, cfg.FFTSize/2+1),
		smoothed: make([]float64, cfg.Bins),
	}
}

// Feed pushes raw 16-bit little-endian PCM into the analysis window.
func (a *Analyzer) Feed(pcm []byte) {
	n := len(pcm) / 2
	if n == 0 {
		return
	}

	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float64(s) / 32768.0
	}

	a.mu.Lock()
	a.ring.push(samples)
	a.mu.Unlock()
}

// Snapshot computes one magnitude frame from the latest analysis window:
// Hann-windowed FFT, per-bin amplitude smoothed against the previous frame,
// then dB-mapped onto 0..255. The frame length is always cfg.Bins.
func (a *Analyzer) Snapshot() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring.latest(a.scratch)
	window.Hann(a.scratch)
	a.fft.Coefficients(a.coeffs, a.scratch)

	frame := make([]byte, a.cfg.Bins)
	usable := len(a.coeffs) - 1 // drop the Nyquist coefficient
	group := usable / a.cfg.Bins
	if group < 1 {
		group = 1
	}
	norm := 2.0 / float64(a.cfg.FFTSize)
	tau := a.cfg.Smoothing

	for b := 0; b < a.cfg.Bins; b++ {
		start := b * group
		if start >= usable {
			break
		}
		end := start + group
		if end > usable {
			end = usable
		}

		var sum float64
		for i := start; i < end; i++ {
			sum += cmplxAbs(a.coeffs[i]) * norm
		}
		amp := sum / float64(end-start)

		a.smoothed[b] = tau*a.smoothed[b] + (1-tau)*amp

		db := 20 * math.Log10(a.smoothed[b]+1e-12)
		v := (db - a.cfg.MinDB) / (a.cfg.MaxDB - a.cfg.MinDB) * 255
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		frame[b] = byte(v)
	}
	return frame
}

// Reset clears the analysis window and smoothing state so no frame survives
// the end of a recording.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ring.reset()
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// Bins returns the fixed frame length.
func (a *Analyzer) Bins() int {
	return a.cfg.Bins
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
