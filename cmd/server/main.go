package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/veris/internal/app"
	"github.com/emmett/veris/internal/audio"
	"github.com/emmett/veris/internal/config"
	grpcserver "github.com/emmett/veris/internal/server/grpc"
	"github.com/emmett/veris/internal/session"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	port        = flag.Int("port", 0, "gRPC server port (default from config: 50051)")
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.verisrc or /etc/veris/config.yaml)")
	audioDevice = flag.String("device", "", "Audio input device name")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Veris gRPC Server v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	fmt.Printf("Veris gRPC Server v%s (commit: %s)\n", Version, GitCommit)

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if *port == 0 {
		*port = cfg.Server.Port
	}
	if *audioDevice == "" {
		*audioDevice = cfg.Audio.Device
	}

	sessCfg, err := buildSessionConfig(cfg, *audioDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	server, err := grpcserver.NewServer(grpcserver.Config{
		Port:    *port,
		Session: sessCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		server.Stop()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func buildSessionConfig(cfg *config.Config, device string) (session.Config, error) {
	deviceMgr := app.NewDeviceManager()
	selected, err := deviceMgr.SelectDevice(device)
	if err != nil {
		return session.Config{}, err
	}
	fmt.Printf("Using device: %s\n", selected.Name)

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
