package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/vad"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Workers    int              `yaml:"workers"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Output     OutputConfig     `yaml:"output"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	Device        string        `yaml:"device"` // substring of the capture device name; empty = default
	SampleRate    uint32        `yaml:"sample_rate"`
	Channels      uint32        `yaml:"channels"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
}

// VADConfig holds energy classifier settings.
type VADConfig struct {
	Sensitivity     string  `yaml:"sensitivity"` // "low", "medium" or "high"
	MinThreshold    float32 `yaml:"min_threshold"`
	NoiseMultiplier float32 `yaml:"noise_multiplier"`
	StartFrames     int     `yaml:"start_frames"`
	EndFrames       int     `yaml:"end_frames"`
}

// OutputConfig controls where extracted speech is written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// TranscribeConfig holds transcription backend settings.
type TranscribeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"` // only "whisper"
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "speechprep")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for models and output.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "speechprep")
}

// DefaultModelsDir returns the default directory for downloaded models.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Workers:  4,
		Audio: AudioConfig{
			SampleRate:    48000,
			Channels:      1,
			ChunkDuration: 30 * time.Second,
		},
		VAD: VADConfig{
			Sensitivity:     "medium",
			MinThreshold:    0.01,
			NoiseMultiplier: 3,
			StartFrames:     1,
			EndFrames:       3,
		},
		Output: OutputConfig{
			Dir: filepath.Join(DefaultDataDir(), "output"),
		},
		Transcribe: TranscribeConfig{
			Backend:   "whisper",
			ModelPath: filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			Language:  "en",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Output.Dir = expandTilde(cfg.Output.Dir)
	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.ChunkDuration < time.Second {
		return fmt.Errorf("audio.chunk_duration must be at least 1s, got %s", c.Audio.ChunkDuration)
	}

	if _, err := vad.ParseSensitivity(c.VAD.Sensitivity); err != nil {
		return fmt.Errorf("vad.sensitivity: %w", err)
	}

	if err := c.EnergyConfig().Validate(); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}

	switch c.Transcribe.Backend {
	case "whisper":
		if c.Transcribe.Enabled && c.Transcribe.ModelPath == "" {
			return fmt.Errorf("transcribe.model_path must not be empty when transcription is enabled")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"whisper\", got %q", c.Transcribe.Backend)
	}

	return nil
}

// EnergyConfig builds classifier settings from the vad section. An
// unparseable sensitivity falls back to medium; Validate reports it.
func (c *Config) EnergyConfig() vad.EnergyConfig {
	ec := vad.DefaultEnergyConfig()
	ec.MinThreshold = c.VAD.MinThreshold
	ec.NoiseMultiplier = c.VAD.NoiseMultiplier
	ec.StartFrames = c.VAD.StartFrames
	ec.EndFrames = c.VAD.EndFrames
	if s, err := vad.ParseSensitivity(c.VAD.Sensitivity); err == nil {
		ec.Sensitivity = s
	}
	return ec
}

// RecorderConfig builds capture settings from the audio section.
func (c *Config) RecorderConfig() audio.RecorderConfig {
	return audio.RecorderConfig{
		Device:     c.Audio.Device,
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
	}
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigTemplate = `# speechprep configuration
#
# Durations use Go syntax (30s, 1m). Paths may start with ~.

log_level: info
workers: 4

audio:
  device: ""            # substring of the capture device name; empty = default
  sample_rate: 48000
  channels: 1
  chunk_duration: 30s

vad:
  sensitivity: medium   # low, medium or high
  min_threshold: 0.01
  noise_multiplier: 3.0
  start_frames: 1
  end_frames: 3

output:
  dir: ~/.local/share/speechprep/output

transcribe:
  enabled: false
  backend: whisper
  model_path: ~/.local/share/speechprep/models/ggml-base.en.bin
  language: en

metrics:
  addr: ""              # e.g. ":9464" to serve /metrics
`

// WriteDefault writes a commented default config to DefaultConfigPath and
// returns its path. If a config already exists it returns ("", nil) and
// leaves the file untouched.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
