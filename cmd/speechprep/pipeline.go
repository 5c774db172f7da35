package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/config"
	"github.com/chaz8081/speechprep/internal/observe"
	"github.com/chaz8081/speechprep/internal/speech"
	"github.com/chaz8081/speechprep/internal/transcribe"
	"github.com/chaz8081/speechprep/internal/vad"
)

// pipeline wires the segmenter to file output and optional transcription.
// handle is safe for concurrent use; each call gets its own classifier.
type pipeline struct {
	seg         *speech.Segmenter
	vad         vad.EnergyConfig
	transcriber transcribe.Transcriber
	backend     string
	metrics     *observe.Metrics
}

// newPipeline builds a pipeline from c. The transcriber is loaded only when
// transcription is enabled. Call close when done.
func newPipeline(c *config.Config, m *observe.Metrics) (*pipeline, error) {
	p := &pipeline{
		vad:     c.EnergyConfig(),
		backend: c.Transcribe.Backend,
		metrics: m,
	}
	opts := []speech.Option{speech.WithLogger(slog.Default())}
	if m != nil {
		opts = append(opts, speech.WithMetrics(m))
	}
	p.seg = speech.New(opts...)

	if c.Transcribe.Enabled {
		slog.Info("loading transcription model", "backend", c.Transcribe.Backend, "path", c.Transcribe.ModelPath)
		start := time.Now()
		tr, err := transcribe.New(&c.Transcribe)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nRun 'speechprep model download' or fix transcribe.model_path", err)
		}
		slog.Info("model loaded", "elapsed", time.Since(start).Round(time.Millisecond))
		p.transcriber = tr
	}
	return p, nil
}

func (p *pipeline) close() {
	if p.transcriber != nil {
		if err := p.transcriber.Close(); err != nil {
			slog.Warn("closing transcriber", "error", err)
		}
	}
}

// handle extracts speech from in and writes it to in.OutputPath. It returns
// nil output when the buffer held no usable speech.
func (p *pipeline) handle(in speech.AudioInput) (*speech.SpeechOutput, error) {
	c, err := vad.NewEnergyClassifier(p.vad)
	if err != nil {
		return nil, err
	}

	out, err := p.seg.Process(in, c)
	if err != nil {
		return nil, err
	}
	if out == nil {
		slog.Info("no speech", "device", in.Device.String())
		return nil, nil
	}

	if err := audio.WriteWAV(out.OutputPath, out.Samples, out.SampleRate); err != nil {
		return nil, err
	}
	slog.Info("speech extracted",
		"device", out.Device.String(),
		"path", out.OutputPath,
		"duration", out.Duration().Round(time.Millisecond),
		"speech_ratio", out.Stats.SpeechRatio,
	)

	if p.transcriber == nil {
		return out, nil
	}

	start := time.Now()
	text, err := p.transcriber.Process(out.Samples)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordTranscription(context.Background(), p.backend, elapsed)
	}
	if err != nil {
		return out, err
	}

	txtPath := strings.TrimSuffix(out.OutputPath, filepath.Ext(out.OutputPath)) + ".txt"
	if err := os.WriteFile(txtPath, []byte(text+"\n"), 0o644); err != nil {
		return out, fmt.Errorf("writing transcript: %w", err)
	}
	slog.Info("transcribed", "path", txtPath, "elapsed", elapsed.Round(time.Millisecond), "text", text)

	return out, nil
}

// speechPath names the extracted speech file for input inside dir.
func speechPath(dir, input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".speech.wav")
}

// startMetrics installs the Prometheus-backed meter provider and serves it on
// addr until ctx ends. It returns nil metrics and a no-op when addr is empty.
func startMetrics(ctx context.Context, addr string) (*observe.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return nil, nil, err
	}

	go func() {
		if err := observe.ServeMetrics(ctx, addr); err != nil {
			slog.Error("metrics server", "error", err)
		}
	}()

	return observe.DefaultMetrics(), func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("metrics shutdown", "error", err)
		}
	}, nil
}
