package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a buffer of interleaved float32 samples in [-1.0, 1.0] together
// with its format.
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// ReadWAV loads a PCM WAV file.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeWAV(f)
}

// WAV format codes from the fmt chunk.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// DecodeWAV decodes PCM WAV data of any bit depth, or 32/64-bit IEEE float
// WAV data, scaling samples to [-1.0, 1.0]. Channels stay interleaved.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("audio: decode wav: not a valid PCM wav file")
	}

	switch dec.WavAudioFormat {
	case formatPCM, formatExtensible:
	case formatIEEEFloat:
		return decodeFloatWAV(dec)
	default:
		return Clip{}, fmt.Errorf("audio: decode wav: unsupported format code %d", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return Clip{}, fmt.Errorf("audio: decode wav: unsupported bit depth %d", bitDepth)
	}

	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		// 8-bit PCM is unsigned.
		if bitDepth == 8 {
			v -= 128
		}
		samples[i] = float32(v) / scale
	}

	return Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// decodeFloatWAV reads the data chunk of an IEEE float WAV as little-endian
// float32 or float64 samples.
func decodeFloatWAV(dec *wav.Decoder) (Clip, error) {
	if dec.BitDepth != 32 && dec.BitDepth != 64 {
		return Clip{}, fmt.Errorf("audio: decode wav: unsupported float bit depth %d", dec.BitDepth)
	}
	width := int(dec.BitDepth) / 8
	if err := dec.FwdToPCM(); err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if dec.PCMChunk == nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", wav.ErrPCMChunkNotFound)
	}

	raw := make([]byte, dec.PCMChunk.Size)
	if _, err := io.ReadFull(dec.PCMChunk, raw); err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: reading float data: %w", err)
	}

	samples := make([]float32, len(raw)/width)
	for i := range samples {
		b := raw[i*width:]
		if width == 4 {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		} else {
			samples[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}
	return Clip{Samples: samples, SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}

type wavFile interface {
	io.WriteSeeker
	io.Closer
}

var createWAV = func(path string) (wavFile, error) { return os.Create(path) }

// WriteWAV writes mono samples as a 16-bit PCM WAV file. Samples outside
// [-1.0, 1.0] are clipped. A failed write removes the partial file.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("audio: write wav: sample rate must be > 0, got %d", sampleRate)
	}

	f, err := createWAV(path)
	if err != nil {
		return fmt.Errorf("audio: create wav: %w", err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		if math.IsNaN(v) {
			v = 0
		}
		data[i] = int(math.Round(v * math.MaxInt16))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("audio: close wav: %w", err)
	}
	return nil
}
