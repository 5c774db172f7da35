// Package audio captures, decodes and reshapes PCM audio: device capture,
// WAV files, resampling, downmixing and loudness normalization.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// DefaultDeviceName is reported when no capture device was selected.
const DefaultDeviceName = "default"

// RecorderConfig selects the capture device and format.
type RecorderConfig struct {
	// Device is a case-insensitive substring of the capture device name.
	// Empty selects the system default.
	Device     string
	SampleRate uint32
	Channels   uint32
}

// Recorder captures audio from a microphone into a float32 buffer.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	cfg        RecorderConfig
	deviceID   *malgo.DeviceID
	deviceName string

	mu        sync.Mutex
	buf       []float32
	recording bool
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.SampleRate == 0 || cfg.Channels == 0 {
		return nil, fmt.Errorf("audio: recorder needs sample rate and channels, got %d Hz %d ch", cfg.SampleRate, cfg.Channels)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	r := &Recorder{
		ctx:        ctx,
		cfg:        cfg,
		deviceName: DefaultDeviceName,
	}

	if cfg.Device != "" {
		info, err := findCaptureDevice(ctx, cfg.Device)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return nil, err
		}
		id := info.ID
		r.deviceID = &id
		r.deviceName = info.Name()
	}

	return r, nil
}

// DeviceName returns the name of the capture device in use.
func (r *Recorder) DeviceName() string {
	return r.deviceName
}

// Start begins capturing audio. Samples accumulate until Drain or Stop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.buf = r.buf[:0]
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.cfg.Channels
	deviceCfg.SampleRate = r.cfg.SampleRate
	if r.deviceID != nil {
		deviceCfg.Capture.DeviceID = r.deviceID.Pointer()
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("initializing capture device %q: %w", r.deviceName, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("starting capture device %q: %w", r.deviceName, err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Drain returns everything captured since Start or the previous Drain and
// keeps recording.
func (r *Recorder) Drain() Clip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.takeLocked()
}

// Stop ends the capture and returns the samples captured since the last Drain.
// Stop without Start returns a clip with nil Samples.
func (r *Recorder) Stop() Clip {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return r.clip(nil)
	}

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false

	return r.takeLocked()
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

func (r *Recorder) takeLocked() Clip {
	samples := make([]float32, len(r.buf))
	copy(samples, r.buf)
	r.buf = r.buf[:0]
	return r.clip(samples)
}

func (r *Recorder) clip(samples []float32) Clip {
	return Clip{
		Samples:    samples,
		SampleRate: int(r.cfg.SampleRate),
		Channels:   int(r.cfg.Channels),
	}
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured audio frames as raw bytes (float32 format).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := bytesToFloat32(pSample, frameCount*r.cfg.Channels)

	r.mu.Lock()
	if r.recording {
		r.buf = append(r.buf, samples...)
	}
	r.mu.Unlock()
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}

// ListCaptureDevices returns the names of the available capture devices.
func ListCaptureDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("listing capture devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("capture device %q not found", name)
}

// Source is a capture device that can be drained while it keeps running.
// *Recorder implements it.
type Source interface {
	Start() error
	Drain() Clip
	Stop() Clip
}

// RecordChunks starts src and emits one clip every interval until ctx is
// cancelled. The final partial chunk is emitted before the channel closes;
// empty chunks are skipped.
func RecordChunks(ctx context.Context, src Source, every time.Duration) (<-chan Clip, error) {
	if every <= 0 {
		return nil, fmt.Errorf("audio: chunk interval must be > 0, got %s", every)
	}
	if err := src.Start(); err != nil {
		return nil, err
	}

	out := make(chan Clip, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		// finish stops the source and emits pending plus whatever was
		// captured after it as the last chunk.
		finish := func(pending []float32) {
			clip := src.Stop()
			clip.Samples = append(pending, clip.Samples...)
			if len(clip.Samples) > 0 {
				out <- clip
			}
		}

		for {
			select {
			case <-ctx.Done():
				finish(nil)
				return
			case <-ticker.C:
				clip := src.Drain()
				if len(clip.Samples) == 0 {
					continue
				}
				select {
				case out <- clip:
				case <-ctx.Done():
					finish(clip.Samples)
					return
				}
			}
		}
	}()

	return out, nil
}
