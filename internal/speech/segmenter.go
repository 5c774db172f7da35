// Package speech extracts denoised speech from captured audio before it is
// handed to a transcriber.
//
// A buffer is resampled to 16 kHz and normalized once, then walked in 100 ms
// frames. Each frame is labelled by a vad.Classifier: speech frames are
// denoised by spectral subtraction against the most recent silence frame's
// power and kept, everything else is dropped. A buffer whose share of speech
// frames is below the classifier's minimum yields no output.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/denoise"
	"github.com/chaz8081/speechprep/internal/observe"
	"github.com/chaz8081/speechprep/internal/vad"
)

// Frame geometry shared with the classifier.
const (
	SampleRate    = audio.SampleRate16kHz
	FrameSize     = denoise.WindowSize
	FrameDuration = 100 * time.Millisecond
)

// Segmenter runs the speech extraction pipeline. It keeps no per-buffer
// state, so one Segmenter may serve concurrent callers as long as each brings
// its own classifier.
type Segmenter struct {
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger for debug output. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records every Process call on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) {
		s.metrics = m
	}
}

// New returns a Segmenter.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract returns the denoised speech frames of a mono buffer, concatenated.
// Samples are nil when the buffer holds no speech or too little of it; that
// is not an error. Resampling, denoising and classifier failures abort the
// whole buffer.
func (s *Segmenter) Extract(samples []float32, device Device, sampleRate int, c vad.Classifier) ([]float32, Stats, error) {
	log := s.logger.With("device", device.String())

	if len(samples) == 0 {
		log.Debug("empty buffer, no speech frames")
		return nil, Stats{}, nil
	}

	data := samples
	if sampleRate != SampleRate {
		log.Debug("resampling", "from_hz", sampleRate, "to_hz", SampleRate)
		var err error
		if data, err = audio.Resample(samples, sampleRate, SampleRate); err != nil {
			return nil, Stats{}, fmt.Errorf("speech: %w", err)
		}
	}
	data = audio.Normalize(data)

	var (
		st     Stats
		out    []float32
		noise  float32
		active bool
		sub    = denoise.NewSubtractor(FrameSize)
	)

	for start := 0; start < len(data); start += FrameSize {
		frame := data[start:min(start+FrameSize, len(data))]
		index := st.TotalFrames
		st.TotalFrames++

		label, err := c.Classify(frame)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("speech: classify frame %d: %w", index, err)
		}

		switch {
		case label == vad.SpeechStart, label == vad.SpeechContinuing && active:
			active = true
			clean, err := sub.Subtract(frame, noise)
			if err != nil {
				return nil, Stats{}, fmt.Errorf("speech: denoise frame %d: %w", index, err)
			}
			out = append(out, clean...)
			st.SpeechFrames++
		case label == vad.SpeechEnd:
			active = false
		case label == vad.Silence:
			noise = denoise.EstimateNoise(frame)
		}
	}

	st.SpeechRatio = float32(st.SpeechFrames) / float32(st.TotalFrames)
	st.MinSpeechRatio = c.MinSpeechRatio()

	log.Debug("frames processed",
		"total", st.TotalFrames,
		"speech", st.SpeechFrames,
		"speech_duration", st.SpeechDuration(),
		"speech_ratio", st.SpeechRatio,
		"min_ratio", st.MinSpeechRatio,
	)

	if len(out) == 0 || st.SpeechRatio < st.MinSpeechRatio {
		log.Debug("insufficient speech, no speech frames",
			"speech_ratio", st.SpeechRatio,
			"min_ratio", st.MinSpeechRatio,
		)
		return nil, st, nil
	}

	return out, st, nil
}

// Process concatenates the segments of in, downmixes the result, then runs
// Extract. It returns nil when no speech was found.
func (s *Segmenter) Process(in AudioInput, c vad.Classifier) (*SpeechOutput, error) {
	start := time.Now()

	var raw []float32
	for _, seg := range in.Segments {
		raw = append(raw, seg...)
	}
	mono := audio.ToMono(raw, in.Channels)

	samples, st, err := s.Extract(mono, in.Device, in.SampleRate, c)

	result := observe.ResultSpeech
	switch {
	case err != nil:
		result = observe.ResultError
	case samples == nil:
		result = observe.ResultNoSpeech
	}
	if s.metrics != nil {
		s.metrics.RecordBuffer(context.Background(), in.Device.String(), result,
			st.TotalFrames, st.SpeechFrames, st.SpeechRatio, time.Since(start))
	}

	if err != nil {
		return nil, err
	}
	if samples == nil {
		return nil, nil
	}

	return &SpeechOutput{
		Samples:    samples,
		SampleRate: SampleRate,
		Channels:   1,
		Device:     in.Device,
		OutputPath: in.OutputPath,
		Stats:      st,
	}, nil
}
