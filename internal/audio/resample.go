package audio

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// SampleRate16kHz is the rate the speech pipeline and whisper expect.
const SampleRate16kHz = 16000

// ErrResampling is matched by every *ResamplingError.
var ErrResampling = errors.New("resampling failed")

// ResamplingError reports why a buffer could not be converted between rates.
// It is fatal for the buffer it was raised for.
type ResamplingError struct {
	From   int
	To     int
	Reason string
	Err    error
}

func (e *ResamplingError) Error() string {
	msg := fmt.Sprintf("audio: resample %d Hz -> %d Hz: %s", e.From, e.To, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrResampling.
func (e *ResamplingError) Is(target error) bool {
	return target == ErrResampling
}

func (e *ResamplingError) Unwrap() error {
	return e.Err
}

// SincParams configures the windowed-sinc interpolator. The window is always
// Blackman-Harris squared.
type SincParams struct {
	// Length is the number of taps across the whole kernel. Must be even.
	Length int
	// Cutoff is the passband edge as a fraction of the Nyquist frequency of
	// the lower of the two rates.
	Cutoff float64
	// Oversampling is the number of kernel table entries per input sample.
	// Kernel values between entries are linearly interpolated.
	Oversampling int
	// MaxRelativeRatio is the interpolation branching factor: how far the
	// ratio may drift from its nominal value within one call. Buffers are
	// processed in one pass at a fixed ratio, so it only has to be >= 1.
	MaxRelativeRatio float64
}

// DefaultSincParams returns the parameters used by Resample.
func DefaultSincParams() SincParams {
	return SincParams{
		Length:           256,
		Cutoff:           0.95,
		Oversampling:     256,
		MaxRelativeRatio: 2.0,
	}
}

// Resampler converts mono buffers from one fixed rate to another. It holds
// only the precomputed kernel and may be reused across calls and goroutines.
type Resampler struct {
	from   int
	to     int
	params SincParams
	table  []float64
}

// NewResampler builds a resampler for the given rates.
func NewResampler(from, to int, p SincParams) (*Resampler, error) {
	if from <= 0 || to <= 0 {
		return nil, &ResamplingError{From: from, To: to, Reason: "sample rates must be positive"}
	}
	if p.Length < 2 || p.Length%2 != 0 || p.Oversampling < 1 ||
		p.Cutoff <= 0 || p.Cutoff > 1 || p.MaxRelativeRatio < 1 {
		return nil, &ResamplingError{From: from, To: to, Reason: fmt.Sprintf("invalid sinc parameters %+v", p)}
	}

	ratio := float64(to) / float64(from)
	limit := float64(p.Oversampling)
	if ratio > limit || ratio < 1/limit {
		return nil, &ResamplingError{From: from, To: to, Reason: fmt.Sprintf("ratio %.6f outside [1/%d, %d]", ratio, p.Oversampling, p.Oversampling)}
	}

	// Downsampling moves the passband edge to the new Nyquist frequency.
	cutoff := p.Cutoff
	if ratio < 1 {
		cutoff *= ratio
	}

	return &Resampler{
		from:   from,
		to:     to,
		params: p,
		table:  sincTable(p.Length, p.Oversampling, cutoff),
	}, nil
}

// Process resamples samples. The output holds floor(len*to/from) samples.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, &ResamplingError{From: r.from, To: r.to, Reason: "empty input"}
	}
	if r.from == r.to {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	outLen := int(int64(len(samples)) * int64(r.to) / int64(r.from))
	if outLen == 0 {
		return nil, &ResamplingError{
			From:   r.from,
			To:     r.to,
			Reason: fmt.Sprintf("%d input samples produce no output", len(samples)),
		}
	}

	half := r.params.Length / 2
	over := float64(r.params.Oversampling)
	step := float64(r.from) / float64(r.to)
	last := len(samples) - 1

	out := make([]float32, outLen)
	for j := range out {
		t := float64(j) * step
		base := int(t)
		lo := max(base-half+1, 0)
		hi := min(base+half, last)

		var acc float64
		for k := lo; k <= hi; k++ {
			pos := (t - float64(k) + float64(half)) * over
			idx := int(pos)
			h := r.table[idx]
			if idx+1 < len(r.table) {
				h += (r.table[idx+1] - h) * (pos - float64(idx))
			}
			acc += float64(samples[k]) * h
		}

		if math.IsNaN(acc) || math.IsInf(acc, 0) {
			return nil, &ResamplingError{
				From:   r.from,
				To:     r.to,
				Reason: fmt.Sprintf("non-finite output at sample %d", j),
			}
		}
		out[j] = float32(acc)
	}

	return out, nil
}

// Resample converts samples from one rate to another using DefaultSincParams.
func Resample(samples []float32, from, to int) ([]float32, error) {
	r, err := NewResampler(from, to, DefaultSincParams())
	if err != nil {
		return nil, err
	}
	return r.Process(samples)
}

// sincTable samples cutoff*sinc(cutoff*x) for x in [-length/2, length/2],
// oversampling entries per unit, tapered by a squared Blackman-Harris window.
func sincTable(length, oversampling int, cutoff float64) []float64 {
	table := make([]float64, length*oversampling+1)
	for i := range table {
		table[i] = 1
	}
	window.BlackmanHarris(table)
	window.BlackmanHarris(table)

	half := float64(length / 2)
	for i := range table {
		x := float64(i)/float64(oversampling) - half
		table[i] *= cutoff * sinc(cutoff*x)
	}
	return table
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
