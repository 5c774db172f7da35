// Package denoise removes a stationary noise floor from speech frames.
package denoise

// EstimateNoise returns the mean squared magnitude of a frame believed to be
// silence. Only this one frame contributes; there is no running average.
func EstimateNoise(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(sum / float64(len(frame)))
}
