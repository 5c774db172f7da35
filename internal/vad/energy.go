package vad

import (
	"fmt"
	"math"
)

// EnergyConfig tunes the EnergyClassifier.
type EnergyConfig struct {
	// FrameSize is the largest frame accepted, in samples.
	FrameSize int
	// MinThreshold is the lowest RMS level that can count as speech.
	MinThreshold float32
	// NoiseMultiplier raises the speech threshold above the tracked noise
	// floor: threshold = max(MinThreshold, floor*NoiseMultiplier).
	NoiseMultiplier float32
	// Smoothing is the weight of the newest quiet frame in the noise floor
	// average, in (0, 1].
	Smoothing float32
	// StartFrames is the number of consecutive loud frames that open speech.
	StartFrames int
	// EndFrames is the number of consecutive quiet frames that close speech.
	EndFrames int
	// Sensitivity sets MinSpeechRatio.
	Sensitivity Sensitivity
}

// DefaultEnergyConfig returns settings for 100 ms frames at 16 kHz.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		FrameSize:       1600,
		MinThreshold:    0.01,
		NoiseMultiplier: 3,
		Smoothing:       0.1,
		StartFrames:     1,
		EndFrames:       3,
		Sensitivity:     SensitivityMedium,
	}
}

// Validate checks the config for invalid values.
func (c EnergyConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("vad: frame size must be > 0, got %d", c.FrameSize)
	}
	if c.MinThreshold < 0 {
		return fmt.Errorf("vad: min threshold must be >= 0, got %f", c.MinThreshold)
	}
	if c.NoiseMultiplier < 1 {
		return fmt.Errorf("vad: noise multiplier must be >= 1, got %f", c.NoiseMultiplier)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("vad: smoothing must be in (0, 1], got %f", c.Smoothing)
	}
	if c.StartFrames < 1 || c.EndFrames < 1 {
		return fmt.Errorf("vad: start and end frames must be >= 1, got %d and %d", c.StartFrames, c.EndFrames)
	}
	return nil
}

// EnergyClassifier is a Classifier driven by frame RMS against an adaptive
// noise floor, with hysteresis on both edges of a speech run. It is not safe
// for concurrent use.
type EnergyClassifier struct {
	cfg        EnergyConfig
	noiseFloor float32
	speaking   bool
	loud       int
	quiet      int
}

// NewEnergyClassifier returns a classifier in the non-speaking state.
func NewEnergyClassifier(cfg EnergyConfig) (*EnergyClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EnergyClassifier{cfg: cfg}, nil
}

// Classify labels the next frame of the stream.
func (c *EnergyClassifier) Classify(frame []float32) (SpeechBoundary, error) {
	if len(frame) == 0 || len(frame) > c.cfg.FrameSize {
		return Unclassified, fmt.Errorf("%w: %d samples, want 1..%d", ErrInvalidFrame, len(frame), c.cfg.FrameSize)
	}

	var sum float64
	for i, s := range frame {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Unclassified, fmt.Errorf("%w: non-finite sample at %d", ErrInvalidFrame, i)
		}
		sum += v * v
	}
	level := float32(math.Sqrt(sum / float64(len(frame))))

	if level >= c.Threshold() {
		c.quiet = 0
		if c.speaking {
			return SpeechContinuing, nil
		}
		c.loud++
		if c.loud < c.cfg.StartFrames {
			return Unclassified, nil
		}
		c.loud = 0
		c.speaking = true
		return SpeechStart, nil
	}

	c.loud = 0
	c.track(level)
	if !c.speaking {
		return Silence, nil
	}
	c.quiet++
	if c.quiet < c.cfg.EndFrames {
		// Short pauses stay inside the speech run.
		return SpeechContinuing, nil
	}
	c.quiet = 0
	c.speaking = false
	return SpeechEnd, nil
}

// MinSpeechRatio implements Classifier.
func (c *EnergyClassifier) MinSpeechRatio() float32 {
	return c.cfg.Sensitivity.MinSpeechRatio()
}

// Threshold returns the RMS level a frame currently needs to count as loud.
func (c *EnergyClassifier) Threshold() float32 {
	return max(c.cfg.MinThreshold, c.noiseFloor*c.cfg.NoiseMultiplier)
}

// Reset returns the classifier to the non-speaking state and forgets the
// noise floor.
func (c *EnergyClassifier) Reset() {
	c.noiseFloor = 0
	c.speaking = false
	c.loud = 0
	c.quiet = 0
}

func (c *EnergyClassifier) track(level float32) {
	if c.noiseFloor == 0 {
		c.noiseFloor = level
		return
	}
	c.noiseFloor += c.cfg.Smoothing * (level - c.noiseFloor)
}
