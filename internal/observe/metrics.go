// Package observe provides OpenTelemetry metrics for the speech pipeline.
//
// Instruments are created from a [metric.MeterProvider]; [InitProvider]
// installs a global provider backed by a Prometheus exporter. Tests should
// build their own [Metrics] with [NewMetrics] and an SDK manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all speechprep metrics.
const meterName = "github.com/chaz8081/speechprep"

// Buffer outcomes reported on the "result" attribute.
const (
	ResultSpeech   = "speech"
	ResultNoSpeech = "no_speech"
	ResultError    = "error"
)

// Metrics holds the instruments recorded by the pipeline. All fields are
// safe for concurrent use.
type Metrics struct {
	// Buffers counts processed buffers by device and result.
	Buffers metric.Int64Counter

	// Frames counts classified frames by device.
	Frames metric.Int64Counter

	// SpeechFrames counts frames kept as speech by device.
	SpeechFrames metric.Int64Counter

	// SpeechRatio records the speech ratio of each successfully processed buffer.
	SpeechRatio metric.Float64Histogram

	// ProcessDuration tracks wall time spent preprocessing one buffer.
	ProcessDuration metric.Float64Histogram

	// TranscribeDuration tracks wall time spent transcribing one buffer.
	TranscribeDuration metric.Float64Histogram
}

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	ratioBuckets   = []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1}
)

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Buffers, err = m.Int64Counter("speechprep.buffers",
		metric.WithDescription("Audio buffers run through the speech pipeline."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("speechprep.frames",
		metric.WithDescription("100 ms frames classified."),
	); err != nil {
		return nil, err
	}
	if met.SpeechFrames, err = m.Int64Counter("speechprep.speech_frames",
		metric.WithDescription("Frames kept as speech."),
	); err != nil {
		return nil, err
	}
	if met.SpeechRatio, err = m.Float64Histogram("speechprep.speech_ratio",
		metric.WithDescription("Fraction of frames classified as speech per buffer."),
		metric.WithExplicitBucketBoundaries(ratioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("speechprep.process.duration",
		metric.WithDescription("Latency of preprocessing one buffer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("speechprep.transcribe.duration",
		metric.WithDescription("Latency of transcribing one buffer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordBuffer records the outcome of one pipeline run.
func (m *Metrics) RecordBuffer(ctx context.Context, device, result string, frames, speechFrames int, ratio float32, elapsed time.Duration) {
	dev := attribute.String("device", device)
	m.Buffers.Add(ctx, 1, metric.WithAttributes(dev, attribute.String("result", result)))
	m.ProcessDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(dev))
	if result == ResultError {
		return
	}
	m.Frames.Add(ctx, int64(frames), metric.WithAttributes(dev))
	m.SpeechFrames.Add(ctx, int64(speechFrames), metric.WithAttributes(dev))
	m.SpeechRatio.Record(ctx, float64(ratio), metric.WithAttributes(dev))
}

// RecordTranscription records how long a transcription took.
func (m *Metrics) RecordTranscription(ctx context.Context, backend string, elapsed time.Duration) {
	m.TranscribeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns metrics bound to the global meter provider. Call it
// after InitProvider so the instruments reach the exporter.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
