package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/speech"
)

var processCmd = &cobra.Command{
	Use:   "process <file.wav>...",
	Short: "Extract speech from WAV files",
	Long: `Extracts denoised speech from each WAV file and writes <name>.speech.wav
into the output directory. Files without enough speech produce no output.

Examples:
  speechprep process meeting.wav
  speechprep process --out ./clean --transcribe recordings/*.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

var (
	processOutDir      string
	processTranscribe  bool
	processSensitivity string
)

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVarP(&processOutDir, "out", "o", "", "output directory (default: output.dir from config)")
	processCmd.Flags().BoolVar(&processTranscribe, "transcribe", false, "transcribe extracted speech (overrides transcribe.enabled)")
	processCmd.Flags().StringVar(&processSensitivity, "sensitivity", "", "VAD sensitivity: low, medium or high (overrides vad.sensitivity)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()

	m, stopMetrics, err := startMetrics(ctx, cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	p, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}
	defer p.close()

	return processFiles(ctx, p, args, cfg.Output.Dir, cfg.Workers)
}

// applyOverrides folds command-line flags into cfg and revalidates it.
func applyOverrides(cmd *cobra.Command) error {
	if processOutDir != "" {
		cfg.Output.Dir = processOutDir
	}
	if cmd.Flags().Changed("transcribe") {
		cfg.Transcribe.Enabled = processTranscribe
	}
	if processSensitivity != "" {
		cfg.VAD.Sensitivity = processSensitivity
	}
	return cfg.Validate()
}

// processFiles runs p over every file with at most workers in flight. A
// failed file is logged and counted; the rest still run.
func processFiles(ctx context.Context, p *pipeline, files []string, outDir string, workers int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	var failed, kept atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := processFile(p, path, outDir)
			if err != nil {
				slog.Error("processing failed", "file", path, "error", err)
				failed.Add(1)
				return nil
			}
			if out != nil {
				kept.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("done", "files", len(files), "with_speech", kept.Load(), "failed", failed.Load())
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(files))
	}
	return nil
}

func processFile(p *pipeline, path, outDir string) (*speech.SpeechOutput, error) {
	clip, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("read input", "file", path, "rate", clip.SampleRate, "channels", clip.Channels, "duration", clip.Duration())

	return p.handle(speech.AudioInput{
		Segments:   [][]float32{clip.Samples},
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
		Device:     speech.Device{Name: path, Kind: speech.DeviceInput},
		OutputPath: speechPath(outDir, path),
	})
}
