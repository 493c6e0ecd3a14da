package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 64 * 1024

// CameraConfig selects the body and how the session talks to it.
type CameraConfig struct {
	Index              int  `yaml:"index"`                // index in the device listing
	SaveToHost         bool `yaml:"save_to_host"`         // save captures to host instead of the card
	KeepaliveIntervalS int  `yaml:"keepalive_interval_s"` // seconds between keep-alive commands
}

// OutputConfig controls where and how downloaded files are written.
type OutputConfig struct {
	DefaultDir          string `yaml:"default_dir"`
	Overwrite           bool   `yaml:"overwrite"`
	DeleteAfterDownload bool   `yaml:"delete_after_download"`
}

// RecordingConfig limits movie recordings.
type RecordingConfig struct {
	MaxDurationMs int `yaml:"max_duration_ms"` // <= 0 disables the limit
}

// TallyConfig describes the optional recording lamp.
type TallyConfig struct {
	Pin      int  `yaml:"pin"`       // BCM pin, 0 = no lamp
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// DefaultsConfig contains generic process parameters.
type DefaultsConfig struct {
	LogLevel       int `yaml:"log_level"`        // 0=error, 1=warning, 2=status, 3=verbose
	TickIntervalMs int `yaml:"tick_interval_ms"` // pause between two loop ticks
}

// WebConfig enables the remote control server.
type WebConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// Config aggregates all application configuration.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Output    OutputConfig    `yaml:"output"`
	Recording RecordingConfig `yaml:"recording"`
	Tally     TallyConfig     `yaml:"tally"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Web       WebConfig       `yaml:"web"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Camera:    CameraConfig{KeepaliveIntervalS: 60},
		Output:    OutputConfig{DefaultDir: "."},
		Recording: RecordingConfig{MaxDurationMs: -1},
		Tally:     TallyConfig{MockGPIO: true},
		Defaults:  DefaultsConfig{LogLevel: 1, TickIntervalMs: 100},
	}
}

// ValidateConfigPath rejects empty paths, paths that are not .yaml files
// and paths climbing out of their directory with "..".
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	return nil
}

// Load reads a YAML file and returns the configuration. Keys missing from
// the file keep their Default value.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.Camera.Index < 0 {
		return fmt.Errorf("camera.index must be >= 0, got %d", c.Camera.Index)
	}
	if c.Camera.KeepaliveIntervalS <= 0 {
		c.Camera.KeepaliveIntervalS = 60
	}
	if c.Output.DefaultDir == "" {
		c.Output.DefaultDir = "."
	}
	if c.Defaults.LogLevel < 0 || c.Defaults.LogLevel > 3 {
		return fmt.Errorf("defaults.log_level must be between 0 and 3, got %d", c.Defaults.LogLevel)
	}
	if c.Defaults.TickIntervalMs <= 0 {
		c.Defaults.TickIntervalMs = 100
	}
	if c.Tally.Pin < 0 {
		return fmt.Errorf("tally.pin must be >= 0, got %d", c.Tally.Pin)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 0 and 65535, got %d", c.Web.Port)
	}
	return nil
}

// KeepaliveInterval returns the period between two keep-alive commands.
func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.Camera.KeepaliveIntervalS) * time.Second
}

// TickInterval returns the pause between two process loop ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Defaults.TickIntervalMs) * time.Millisecond
}

// MaxDuration returns the recording limit, or 0 when disabled.
func (c *Config) MaxDuration() time.Duration {
	if c.Recording.MaxDurationMs <= 0 {
		return 0
	}
	return time.Duration(c.Recording.MaxDurationMs) * time.Millisecond
}
