package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/emmett/veris/internal/app"
	"github.com/emmett/veris/internal/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file (default: ~/.verisrc or /etc/veris/config.yaml)")
	hotkeyStr     = flag.String("hotkey", "ctrl+shift+space", "Hotkey that toggles recording")
	audioDevice   = flag.String("device", "", "Audio input device name (use --list-devices to see available devices)")
	listDevices   = flag.Bool("list-devices", false, "List all available audio input devices")
	outputFormat  = flag.String("format", "console", "Output format: console, json, text")
	outputDir     = flag.String("output", ".", "Directory for recorded samples")
	minDurationMs = flag.Int("min-duration", 0, "Minimum sample length in milliseconds (default from config: 1000)")
	maxDurationMs = flag.Int("max-duration", 0, "Maximum sample length in milliseconds (default from config: 10000)")
	noVisual      = flag.Bool("no-visual", false, "Disable the live frequency display")
	verbose       = flag.Bool("verbose", false, "Enable debug logging")
	showVersion   = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	applyConfigDefaults(cfg)

	if *showVersion {
		fmt.Printf("Veris CLI v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	fmt.Printf("Veris CLI v%s (commit: %s, branch: %s, built: %s)\n",
		Version, GitCommit, GitBranch, BuildTime)
	fmt.Println("Voice Sample Recorder")
	fmt.Println()

	if *listDevices {
		dm := app.NewDeviceManager()
		if err := dm.ListDevices(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyConfigDefaults(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if !flagsSet["device"] && cfg.Audio.Device != "" {
		*audioDevice = cfg.Audio.Device
	}
	if !flagsSet["format"] && cfg.Output.Format != "" {
		*outputFormat = cfg.Output.Format
	}
	if !flagsSet["output"] && cfg.Output.Directory != "" {
		*outputDir = cfg.Output.Directory
	}
	if !flagsSet["no-visual"] {
		*noVisual = !cfg.Visual.Enabled
	}
	if flagsSet["min-duration"] && *minDurationMs > 0 {
		cfg.Recording.MinDurationMs = *minDurationMs
	}
	if flagsSet["max-duration"] && *maxDurationMs > 0 {
		cfg.Recording.MaxDurationMs = *maxDurationMs
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := zap.NewProductionConfig()
	if *verbose {
		logCfg = zap.NewDevelopmentConfig()
	}
	log, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	recorder := app.NewRecorder(app.RecorderConfig{
		Config:    cfg,
		Hotkey:    *hotkeyStr,
		Device:    *audioDevice,
		OutputDir: *outputDir,
		Format:    *outputFormat,
		Visual:    !*noVisual,
	}, log)

	return recorder.Run()
}
