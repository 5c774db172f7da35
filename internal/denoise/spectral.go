package denoise

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// WindowSize is the FFT length used for speech frames: 100 ms at 16 kHz.
const WindowSize = 1600

// ErrFFT is matched by every *FFTError.
var ErrFFT = errors.New("fft failed")

// FFTError reports a forward or inverse transform that could not run.
type FFTError struct {
	Op     string // "forward" or "inverse"
	Size   int
	Reason string
}

func (e *FFTError) Error() string {
	return fmt.Sprintf("denoise: %s fft of size %d: %s", e.Op, e.Size, e.Reason)
}

// Is reports whether target is ErrFFT.
func (e *FFTError) Is(target error) bool {
	return target == ErrFFT
}

// Subtractor performs spectral subtraction on fixed-size windows. It reuses
// its buffers between calls and is not safe for concurrent use.
type Subtractor struct {
	size   int
	fft    *fourier.FFT
	seq    []float64
	coeffs []complex128
}

// NewSubtractor returns a Subtractor for windows of size samples.
func NewSubtractor(size int) *Subtractor {
	s := &Subtractor{size: size}
	if size > 0 {
		s.fft = fourier.NewFFT(size)
		s.seq = make([]float64, size)
		s.coeffs = make([]complex128, size/2+1)
	}
	return s
}

// Subtract removes the noise power d from frame. Frames shorter than the
// window are zero-padded; the result always holds a full window.
//
// Each bin x is scaled by sqrt(1 - d/|x|^2). Bins whose power does not
// exceed d are zeroed, as are bins where the gain is not finite.
func (s *Subtractor) Subtract(frame []float32, d float32) ([]float32, error) {
	if s.size <= 0 {
		return nil, &FFTError{Op: "forward", Size: s.size, Reason: "window size must be positive"}
	}
	if len(frame) > s.size {
		return nil, &FFTError{Op: "forward", Size: s.size, Reason: fmt.Sprintf("frame of %d samples exceeds window", len(frame))}
	}

	for i := range s.seq {
		s.seq[i] = 0
	}
	for i, v := range frame {
		s.seq[i] = float64(v)
	}

	s.fft.Coefficients(s.coeffs, s.seq)

	for i, x := range s.coeffs {
		s.coeffs[i] = x * complex(float64(gain(x, d)), 0)
	}

	s.fft.Sequence(s.seq, s.coeffs)
	floats.Scale(1/float64(s.size), s.seq)

	out := make([]float32, s.size)
	for i, v := range s.seq {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &FFTError{Op: "inverse", Size: s.size, Reason: fmt.Sprintf("non-finite sample at %d", i)}
		}
		out[i] = float32(v)
	}
	return out, nil
}

// gain computes the suppression factor for one bin in single precision.
func gain(x complex128, d float32) float32 {
	re, im := float32(real(x)), float32(imag(x))
	power := re*re + im*im
	div := 1 - d/power
	if !(div > 0) {
		return 0
	}
	g := float32(math.Sqrt(float64(div)))
	if math.IsInf(float64(g), 0) || math.IsNaN(float64(g)) {
		return 0
	}
	return g
}

// SpectralSubtraction denoises one frame of up to WindowSize samples.
func SpectralSubtraction(frame []float32, d float32) ([]float32, error) {
	return NewSubtractor(WindowSize).Subtract(frame, d)
}
