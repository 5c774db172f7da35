package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/speech"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture from a microphone and extract speech chunk by chunk",
	Long: `Records from the configured capture device and runs every chunk
(audio.chunk_duration) through speech extraction. Chunks with speech are
written to the output directory as rec-<timestamp>.wav. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var (
	recordDevice   string
	recordDuration time.Duration
	recordChunk    time.Duration
)

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordDevice, "device", "d", "", "capture device name substring (overrides audio.device)")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	recordCmd.Flags().DurationVar(&recordChunk, "chunk", 0, "chunk length (overrides audio.chunk_duration)")
}

func runRecord(cmd *cobra.Command, _ []string) error {
	if recordDevice != "" {
		cfg.Audio.Device = recordDevice
	}
	if recordChunk > 0 {
		cfg.Audio.ChunkDuration = recordChunk
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

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

	rec, err := audio.NewRecorder(cfg.RecorderConfig())
	if err != nil {
		return fmt.Errorf("%w\n\nEnsure microphone access is granted and the device exists ('speechprep devices')", err)
	}
	defer func() { _ = rec.Close() }()

	chunks, err := audio.RecordChunks(ctx, rec, cfg.Audio.ChunkDuration)
	if err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	device := speech.Device{Name: rec.DeviceName(), Kind: speech.DeviceInput}
	slog.Info("recording", "device", device.Name, "rate", cfg.Audio.SampleRate, "channels", cfg.Audio.Channels, "chunk", cfg.Audio.ChunkDuration)

	var n, failed int
	for clip := range chunks {
		n++
		name := fmt.Sprintf("rec-%s-%03d.wav", time.Now().Format("20060102-150405"), n)
		_, err := p.handle(speech.AudioInput{
			Segments:   [][]float32{clip.Samples},
			SampleRate: clip.SampleRate,
			Channels:   clip.Channels,
			Device:     device,
			OutputPath: filepath.Join(cfg.Output.Dir, name),
		})
		if err != nil {
			failed++
			slog.Error("chunk failed", "chunk", n, "duration", clip.Duration(), "error", err)
		}
	}

	slog.Info("recording stopped", "chunks", n, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d chunks failed", failed, n)
	}
	return nil
}
