package audio

import "math"

// Loudness targets for Normalize.
const (
	TargetRMS  = 0.2
	TargetPeak = 0.95
)

// Levels returns the root-mean-square level and the absolute peak of samples.
func Levels(samples []float32) (rms, peak float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		peak = max(peak, float32(math.Abs(v)))
	}
	return float32(math.Sqrt(sum / float64(len(samples)))), peak
}

// Normalize scales samples toward TargetRMS without letting the peak exceed
// TargetPeak: the smaller of the two implied gains wins. A silent buffer has
// no defined gain and is returned unchanged.
func Normalize(samples []float32) []float32 {
	out := make([]float32, len(samples))
	rms, peak := Levels(samples)
	if rms == 0 || peak == 0 {
		copy(out, samples)
		return out
	}

	scale := min(TargetRMS/rms, TargetPeak/peak)
	if math.IsNaN(float64(scale)) || math.IsInf(float64(scale), 0) {
		copy(out, samples)
		return out
	}

	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}
