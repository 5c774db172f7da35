package speech

import (
	"fmt"
	"time"
)

// DeviceKind tells capture devices from loopback/output devices.
type DeviceKind int

const (
	DeviceInput DeviceKind = iota
	DeviceOutput
)

func (k DeviceKind) String() string {
	if k == DeviceOutput {
		return "output"
	}
	return "input"
}

// Device identifies where a buffer was captured. The pipeline uses it for
// log and metric context only.
type Device struct {
	Name string
	Kind DeviceKind
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Kind)
}

// AudioInput is a captured recording handed to Process. Segments hold
// interleaved samples at SampleRate with Channels channels, in capture order.
// A channel group may straddle two segments.
type AudioInput struct {
	Segments   [][]float32
	SampleRate int
	Channels   int
	Device     Device
	// OutputPath is where a caller intends to store the result. The pipeline
	// never writes it.
	OutputPath string
}

// SpeechOutput is the reduced, denoised speech extracted from an AudioInput.
// It is always mono at SampleRate.
type SpeechOutput struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Device     Device
	OutputPath string
	Stats      Stats
}

// Duration returns the playing time of the extracted speech.
func (o *SpeechOutput) Duration() time.Duration {
	return time.Duration(len(o.Samples)) * time.Second / time.Duration(o.SampleRate)
}

// Stats summarizes one pipeline run.
type Stats struct {
	TotalFrames    int
	SpeechFrames   int
	SpeechRatio    float32
	MinSpeechRatio float32
}

// SpeechDuration is the length of audio kept as speech.
func (s Stats) SpeechDuration() time.Duration {
	return time.Duration(s.SpeechFrames) * FrameDuration
}
