package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/config"
	"github.com/emmett/veris/internal/input"
	"github.com/emmett/veris/internal/output"
	"github.com/emmett/veris/internal/session"
	"github.com/emmett/veris/internal/spectrum"
)

// RecorderConfig holds configuration for the interactive capture app
type RecorderConfig struct {
	Config    *config.Config
	Hotkey    string
	Device    string
	OutputDir string
	Format    string
	Visual    bool
}

// Recorder runs the interactive voice-sample capture loop: a global hotkey
// toggles recording, completed samples land as WAV files, and a live
// frequency display runs while capturing.
type Recorder struct {
	cfg       RecorderConfig
	log       *zap.Logger
	ctrl      *session.Controller
	hotkeyMgr *input.HotkeyManager
	statusOut *output.ConsoleOutput
	formatter output.Formatter

	sampleCount int
}

// NewRecorder creates a new interactive recorder
func NewRecorder(cfg RecorderConfig, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{cfg: cfg, log: log}
}

// Run starts the capture loop and blocks until interrupted
func (r *Recorder) Run() error {
	cfg := r.cfg.Config

	// Select audio device
	deviceMgr := NewDeviceManager()
	selectedDevice, err := deviceMgr.SelectDevice(r.cfg.Device)
	if err != nil {
		return err
	}
	fmt.Printf("Using device: %s\n", selectedDevice.Name)

	captureCfg := audio.DefaultCaptureConfig()
	captureCfg.SampleRate = uint32(cfg.Audio.SampleRate)
	captureCfg.EchoCancellation = cfg.Audio.EchoCancellation
	captureCfg.NoiseSuppression = cfg.Audio.NoiseSuppression
	captureCfg.AutoGain = cfg.Audio.AutoGain
	captureCfg.DeviceID = selectedDevice.ID

	r.statusOut = output.DefaultConsoleOutput()
	r.formatter, err = output.NewFormatter(r.cfg.Format, os.Stdout)
	if err != nil {
		return err
	}
	defer r.formatter.Close()

	// Session outcomes arrive asynchronously (auto-stop, device loss), so
	// transitions are funneled into the main loop.
	outcomeChan := make(chan session.Snapshot, 4)
	hook := func(s session.Snapshot) {
		if s.State == session.StateCompleted || s.State == session.StateFailed {
			select {
			case outcomeChan <- s:
			default:
			}
		}
	}

	opts := []session.Option{
		session.WithLogger(r.log),
		session.WithTransitionHook(hook),
	}

	if r.cfg.Visual {
		analyzerCfg := spectrum.DefaultAnalyzerConfig()
		analyzerCfg.Bins = cfg.Visual.Bars
		analyzer := spectrum.NewAnalyzer(analyzerCfg)

		renderer := spectrum.NewBarRenderer(os.Stdout, spectrum.BarConfig{
			Width:       cfg.Visual.Bars,
			BottomColor: cfg.Visual.BottomColor,
			TopColor:    cfg.Visual.TopColor,
		})
		pipeline := spectrum.NewPipeline(analyzer, renderer, cfg.Visual.FPS)

		opts = append(opts,
			session.WithFrameLoop(pipeline),
			session.WithFragmentTap(func(f audio.Fragment) { analyzer.Feed(f.Data) }),
		)
	}

	r.ctrl = session.New(session.Config{
		MinDuration:  cfg.MinDuration(),
		MaxDuration:  cfg.MaxDuration(),
		TickInterval: cfg.TickInterval(),
		Capture:      captureCfg,
	}, audio.NewMalgoAcquirer(), opts...)

	// Set up context and Ctrl+C handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nExiting...")
		cancel()
	}()

	toggleChan := make(chan bool, 10)
	r.hotkeyMgr = input.NewHotkeyManager(func(recording bool) {
		toggleChan <- recording
	})
	if err := r.hotkeyMgr.Start(ctx, r.cfg.Hotkey); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	defer r.hotkeyMgr.Stop()

	fmt.Printf("\nPress %s to start/stop recording a voice sample.\n", r.cfg.Hotkey)
	fmt.Printf("Samples: %s minimum, %s maximum. Press Ctrl+C to exit.\n",
		cfg.MinDuration(), cfg.MaxDuration())
	fmt.Println("\nWaiting...")

	for {
		select {
		case <-ctx.Done():
			r.ctrl.Reset()
			return nil

		case snap := <-outcomeChan:
			// Auto-stop at the ceiling or a device failure; the hotkey
			// toggle must follow the session, not the other way around.
			r.hotkeyMgr.SetRecording(false)
			if snap.State == session.StateCompleted {
				r.saveSample(r.ctrl.Result())
			} else if snap.Err != nil {
				r.statusOut.Error(fmt.Sprintf("Recording failed: %v", snap.Err))
			}
			fmt.Println("\nWaiting...")

		case recording := <-toggleChan:
			if recording {
				fmt.Println("\n[Recording]")
				if err := r.ctrl.Start(ctx); err != nil {
					r.statusOut.Error(fmt.Sprintf("Failed to start recording: %v", err))
					r.hotkeyMgr.SetRecording(false)
				}
			} else {
				r.stopRequested()
			}
		}
	}
}

// stopRequested handles a manual hotkey stop.
func (r *Recorder) stopRequested() {
	_, err := r.ctrl.Stop()
	if err == nil {
		// Result is saved by the outcome handler.
		return
	}

	var tooShort *session.TooShortError
	if errors.As(err, &tooShort) {
		// Keep recording; the toggle stays on.
		r.hotkeyMgr.SetRecording(true)
		r.statusOut.Error(tooShort.Error() + " - still recording")
		return
	}

	r.log.Debug("stop ignored", zap.Error(err))
}

// saveSample writes a completed artifact to disk and reports it.
func (r *Recorder) saveSample(res *session.Result) {
	if res == nil {
		return
	}
	r.sampleCount++

	name := fmt.Sprintf("sample-%s.wav", time.Now().Format("20060102-150405"))
	path := filepath.Join(r.cfg.OutputDir, name)

	spec := output.WAVSpec{
		SampleRate: uint32(r.cfg.Config.Audio.SampleRate),
		Channels:   1,
		BitDepth:   16,
	}
	if err := output.SaveWAV(path, res.Artifact, spec); err != nil {
		r.statusOut.Error(fmt.Sprintf("Failed to save sample: %v", err))
		return
	}

	r.formatter.WriteResult(output.SampleResult{
		Index:      r.sampleCount,
		DurationMs: res.DurationMs,
		Bytes:      len(res.Artifact),
		MediaType:  res.MediaType,
		File:       path,
		Timestamp:  time.Now(),
	})
}
