package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func energy(s []float32) float64 {
	var e float64
	for _, v := range s {
		e += float64(v) * float64(v)
	}
	return e / float64(len(s))
}

func TestToMono(t *testing.T) {
	t.Run("stereo pairs", func(t *testing.T) {
		got := ToMono([]float32{1, 1, 2, 2, 3, 3}, 2)
		assert.Equal(t, []float32{1, 2, 3}, got)
	})

	t.Run("averages channels", func(t *testing.T) {
		got := ToMono([]float32{1, 0, -1, 0.5, 0.5, 0.5}, 3)
		assert.InDeltaSlice(t, []float32{0, 0.5}, got, 1e-6)
	})

	t.Run("drops trailing partial group", func(t *testing.T) {
		got := ToMono([]float32{1, 3, 5}, 2)
		assert.Equal(t, []float32{2}, got)
	})

	t.Run("mono is copied", func(t *testing.T) {
		in := []float32{0.1, 0.2}
		got := ToMono(in, 1)
		require.Equal(t, in, got)
		got[0] = 9
		assert.Equal(t, float32(0.1), in[0])
	})
}

func TestNormalize(t *testing.T) {
	t.Run("rms bound", func(t *testing.T) {
		// A full-scale sine has peak/rms = sqrt(2), so the rms target wins.
		in := sine(16000, 16000, 440, 0.01)
		out := Normalize(in)
		rms, peak := Levels(out)
		assert.InDelta(t, TargetRMS, rms, 1e-3)
		assert.Less(t, peak, float32(TargetPeak))
	})

	t.Run("peak bound", func(t *testing.T) {
		// One spike in near silence: the peak target wins.
		in := make([]float32, 1000)
		in[500] = 0.5
		out := Normalize(in)
		_, peak := Levels(out)
		assert.InDelta(t, TargetPeak, peak, 1e-6)
	})

	t.Run("idempotent", func(t *testing.T) {
		in := sine(8000, 16000, 300, 0.3)
		in[10] = 0.9
		once := Normalize(in)
		twice := Normalize(once)
		assert.InDeltaSlice(t, once, twice, 1e-6)
	})

	t.Run("silent buffer unchanged", func(t *testing.T) {
		in := make([]float32, 100)
		out := Normalize(in)
		assert.Equal(t, in, out)
		for _, v := range out {
			assert.False(t, math.IsNaN(float64(v)))
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Normalize(nil))
	})
}

func TestResampleLength(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		n        int
		want     int
	}{
		{"48k to 16k", 48000, 16000, 4800, 1600},
		{"44.1k to 16k", 44100, 16000, 4410, 1600},
		{"8k to 16k", 8000, 16000, 800, 1600},
		{"odd length", 44100, 16000, 1001, 363},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resample(sine(tt.n, tt.from, 440, 0.5), tt.from, tt.to)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResamplePreservesTone(t *testing.T) {
	const freq = 440.0
	in := sine(4800, 48000, freq, 0.5)
	out, err := Resample(in, 48000, 16000)
	require.NoError(t, err)

	want := sine(len(out), 16000, freq, 0.5)
	// Skip the edges, where the kernel runs off the buffer.
	mid := out[300 : len(out)-300]
	assert.InDeltaSlice(t, want[300:len(out)-300], mid, 0.02)
}

func TestResampleRoundTripEnergy(t *testing.T) {
	in := sine(24000, 48000, 440, 0.5)
	down, err := Resample(in, 48000, 16000)
	require.NoError(t, err)
	up, err := Resample(down, 16000, 48000)
	require.NoError(t, err)
	require.Len(t, up, len(in))

	const edge = 1000
	eIn := energy(in[edge : len(in)-edge])
	eOut := energy(up[edge : len(up)-edge])
	assert.InEpsilon(t, eIn, eOut, 0.05)
}

func TestResampleRejectsHighFrequencies(t *testing.T) {
	// 12 kHz is above the 8 kHz Nyquist of the target rate.
	in := sine(9600, 48000, 12000, 0.5)
	out, err := Resample(in, 48000, 16000)
	require.NoError(t, err)
	assert.Less(t, energy(out[200:len(out)-200]), 1e-3)
}

func TestResampleErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		from, to int
	}{
		{"empty input", nil, 48000, 16000},
		{"zero source rate", []float32{1}, 0, 16000},
		{"negative target rate", []float32{1}, 16000, -1},
		{"extreme ratio", []float32{1, 2, 3}, 1, 16000},
		{"no output", []float32{1, 2}, 48000, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resample(tt.in, tt.from, tt.to)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrResampling))
			var re *ResamplingError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.from, re.From)
			assert.Equal(t, tt.to, re.To)
		})
	}
}

func TestNewResamplerRejectsBadParams(t *testing.T) {
	p := DefaultSincParams()
	p.Length = 255
	_, err := NewResampler(48000, 16000, p)
	assert.ErrorIs(t, err, ErrResampling)

	p = DefaultSincParams()
	p.Cutoff = 1.5
	_, err = NewResampler(48000, 16000, p)
	assert.ErrorIs(t, err, ErrResampling)
}

func TestResamplerReuse(t *testing.T) {
	r, err := NewResampler(44100, 16000, DefaultSincParams())
	require.NoError(t, err)

	in := sine(4410, 44100, 1000, 0.4)
	a, err := r.Process(in)
	require.NoError(t, err)
	b, err := r.Process(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
