package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Recording duration policy
	Recording struct {
		MinDurationMs  int `yaml:"min_duration_ms"`
		MaxDurationMs  int `yaml:"max_duration_ms"`
		TickIntervalMs int `yaml:"tick_interval_ms"`
	} `yaml:"recording"`

	// Audio capture settings
	Audio struct {
		Device           string `yaml:"device"`
		SampleRate       int    `yaml:"sample_rate"`
		EchoCancellation bool   `yaml:"echo_cancellation"`
		NoiseSuppression bool   `yaml:"noise_suppression"`
		AutoGain         bool   `yaml:"auto_gain"`
	} `yaml:"audio"`

	// Visualization settings
	Visual struct {
		Enabled     bool   `yaml:"enabled"`
		Bars        int    `yaml:"bars"`
		FPS         int    `yaml:"fps"`
		BottomColor string `yaml:"bottom_color"`
		TopColor    string `yaml:"top_color"`
	} `yaml:"visual"`

	// Output settings
	Output struct {
		Directory string `yaml:"directory"`
		Format    string `yaml:"format"`
	} `yaml:"output"`

	// Server settings
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Recording defaults: 1s minimum, 10s ceiling, 100ms ticks
	cfg.Recording.MinDurationMs = 1000
	cfg.Recording.MaxDurationMs = 10000
	cfg.Recording.TickIntervalMs = 100

	// Audio defaults
	cfg.Audio.Device = ""
	cfg.Audio.SampleRate = 16000
	cfg.Audio.EchoCancellation = true
	cfg.Audio.NoiseSuppression = true
	cfg.Audio.AutoGain = true

	// Visual defaults
	cfg.Visual.Enabled = true
	cfg.Visual.Bars = 64
	cfg.Visual.FPS = 30
	cfg.Visual.BottomColor = "#005f87"
	cfg.Visual.TopColor = "#5fd7ff"

	// Output defaults
	cfg.Output.Directory = "."
	cfg.Output.Format = "console"

	// Server defaults
	cfg.Server.Port = 50051
	cfg.Server.Host = "localhost"

	return cfg
}

// MinDuration returns the minimum recording duration.
func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.Recording.MinDurationMs) * time.Millisecond
}

// MaxDuration returns the recording ceiling.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Recording.MaxDurationMs) * time.Millisecond
}

// TickInterval returns the duration governor's tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Recording.TickIntervalMs) * time.Millisecond
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.Recording.MinDurationMs <= 0 {
		return fmt.Errorf("recording.min_duration_ms must be positive, got %d", c.Recording.MinDurationMs)
	}
	if c.Recording.MaxDurationMs < c.Recording.MinDurationMs {
		return fmt.Errorf("recording.max_duration_ms (%d) must not be below min_duration_ms (%d)",
			c.Recording.MaxDurationMs, c.Recording.MinDurationMs)
	}
	if c.Recording.TickIntervalMs <= 0 {
		return fmt.Errorf("recording.tick_interval_ms must be positive, got %d", c.Recording.TickIntervalMs)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Visual.Bars <= 0 {
		return fmt.Errorf("visual.bars must be positive, got %d", c.Visual.Bars)
	}
	if c.Visual.FPS <= 0 {
		return fmt.Errorf("visual.fps must be positive, got %d", c.Visual.FPS)
	}
	return nil
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.verisrc > /etc/veris/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.verisrc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".verisrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/veris/config.yaml)
	systemConfigPath := "/etc/veris/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
