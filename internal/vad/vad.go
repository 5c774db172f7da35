// Package vad classifies fixed-size audio frames into speech boundaries.
//
// The speech pipeline consumes classifiers only through the Classifier
// interface, so any detector (energy based, neural, rule based) can drive it.
package vad

import (
	"errors"
	"fmt"
	"strings"
)

// SpeechBoundary is the per-frame label produced by a Classifier.
type SpeechBoundary int

const (
	// Unclassified is the zero value: the classifier did not commit to a label.
	Unclassified SpeechBoundary = iota
	// SpeechStart marks the first frame of a speech run.
	SpeechStart
	// SpeechContinuing marks a frame inside a speech run.
	SpeechContinuing
	// SpeechEnd marks the frame at which a speech run ended.
	SpeechEnd
	// Silence marks a frame with no speech.
	Silence
)

func (b SpeechBoundary) String() string {
	switch b {
	case SpeechStart:
		return "start"
	case SpeechContinuing:
		return "continuing"
	case SpeechEnd:
		return "end"
	case Silence:
		return "silence"
	default:
		return "unclassified"
	}
}

// Classifier labels audio frames. Frames must be fed once each, in stream
// order: implementations may keep state between calls. A Classifier is used
// by one buffer at a time.
type Classifier interface {
	// Classify labels one mono frame. It fails if the frame is malformed.
	Classify(frame []float32) (SpeechBoundary, error)
	// MinSpeechRatio is the fraction of speech frames, in [0, 1], below
	// which a buffer is treated as containing no speech.
	MinSpeechRatio() float32
}

// ErrInvalidFrame is returned for empty, oversized, or non-finite frames.
var ErrInvalidFrame = errors.New("vad: invalid frame")

// Sensitivity selects how much speech a buffer needs before it is kept.
type Sensitivity int

const (
	SensitivityLow Sensitivity = iota
	SensitivityMedium
	SensitivityHigh
)

// MinSpeechRatio returns the minimum speech ratio for the sensitivity.
func (s Sensitivity) MinSpeechRatio() float32 {
	switch s {
	case SensitivityLow:
		return 0.01
	case SensitivityHigh:
		return 0.2
	default:
		return 0.05
	}
}

func (s Sensitivity) String() string {
	switch s {
	case SensitivityLow:
		return "low"
	case SensitivityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseSensitivity parses "low", "medium" or "high".
func ParseSensitivity(s string) (Sensitivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SensitivityLow, nil
	case "medium", "":
		return SensitivityMedium, nil
	case "high":
		return SensitivityHigh, nil
	default:
		return SensitivityMedium, fmt.Errorf("vad: unknown sensitivity %q (want low, medium or high)", s)
	}
}
