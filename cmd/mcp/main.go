package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/emmett/veris/internal/app"
	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/config"
	mcpserver "github.com/emmett/veris/internal/server/mcp"
	"github.com/emmett/veris/internal/session"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.verisrc or /etc/veris/config.yaml)")
	audioDevice = flag.String("device", "", "Audio input device name")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Veris MCP v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if *audioDevice == "" {
		*audioDevice = cfg.Audio.Device
	}

	sessCfg, err := buildSessionConfig(cfg, *audioDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	server, err := mcpserver.NewServer(mcpserver.Config{
		ServerName:    "veris",
		ServerVersion: Version,
		Session:       sessCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}
	defer server.Stop()

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func buildSessionConfig(cfg *config.Config, device string) (session.Config, error) {
	deviceMgr := app.NewDeviceManager()
	selected, err := deviceMgr.SelectDevice(device)
	if err != nil {
		return session.Config{}, err
	}

	captureCfg := audio.DefaultCaptureConfig()
	captureCfg.SampleRate = uint32(cfg.Audio.SampleRate)
	captureCfg.EchoCancellation = cfg.Audio.EchoCancellation
	captureCfg.NoiseSuppression = cfg.Audio.NoiseSuppression
	captureCfg.AutoGain = cfg.Audio.AutoGain
	captureCfg.DeviceID = selected.ID

	return session.Config{
		MinDuration:  cfg.MinDuration(),
		MaxDuration:  cfg.MaxDuration(),
		TickInterval: cfg.TickInterval(),
		Capture:      captureCfg,
	}, nil
}
