package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speechprep/internal/config"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	// cfg is loaded and validated before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "speechprep",
	Short:   "Extract denoised speech from recordings before transcription",
	Version: version,
	Long: `speechprep reduces captured audio to the parts that contain speech.

Input is resampled to 16 kHz mono and normalized, split into 100 ms frames
and classified by an energy VAD. Speech frames are cleaned with spectral
subtraction against the latest silence frame and written out as WAV; buffers
with too little speech are dropped. The result can optionally be transcribed
with whisper.cpp.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, source, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}

		level := config.ParseLogLevel(c.LogLevel)
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		slog.Debug("config loaded", "source", source)

		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/speechprep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. The second value
// names where the config came from.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		c, err := config.Load(path)
		return c, path, err
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		c, err := config.Load(defaultPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return c, defaultPath, nil
	}

	return config.Default(), "defaults", nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
