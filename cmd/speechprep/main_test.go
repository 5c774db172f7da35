package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chaz8081/speechprep/internal/audio"
	"github.com/chaz8081/speechprep/internal/config"
	"github.com/chaz8081/speechprep/internal/speech"
	"github.com/chaz8081/speechprep/internal/vad"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranscriber) Process(samples []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "hello world", nil
}

func (f *fakeTranscriber) Close() error { return nil }

// writeSpeechWAV writes quiet, loud, quiet 48 kHz audio.
func writeSpeechWAV(t *testing.T, path string) {
	t.Helper()
	const rate = 48000
	samples := make([]float32, 3*rate)
	for i := range samples {
		amp := 0.001
		if i >= rate && i < 2*rate {
			amp = 0.5
		}
		samples[i] = float32(amp * math.Sin(2*math.Pi*300*float64(i)/rate))
	}
	if err := audio.WriteWAV(path, samples, rate); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
}

func testPipeline(tr *fakeTranscriber) *pipeline {
	p := &pipeline{
		seg:     speech.New(),
		vad:     vad.DefaultEnergyConfig(),
		backend: "whisper",
	}
	if tr != nil {
		p.transcriber = tr
	}
	return p
}

func TestProcessFiles(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")

	speechFile := filepath.Join(in, "talk.wav")
	writeSpeechWAV(t, speechFile)
	silentFile := filepath.Join(in, "silence.wav")
	if err := audio.WriteWAV(silentFile, make([]float32, 16000), 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	tr := &fakeTranscriber{}
	if err := processFiles(context.Background(), testPipeline(tr), []string{speechFile, silentFile}, out, 2); err != nil {
		t.Fatalf("processFiles() error = %v", err)
	}

	clip, err := audio.ReadWAV(filepath.Join(out, "talk.speech.wav"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if clip.SampleRate != speech.SampleRate || clip.Channels != 1 {
		t.Errorf("output format = %d Hz %d ch, want 16000 Hz mono", clip.SampleRate, clip.Channels)
	}
	if len(clip.Samples) == 0 || len(clip.Samples)%speech.FrameSize != 0 {
		t.Errorf("output length = %d, want a non-zero multiple of %d", len(clip.Samples), speech.FrameSize)
	}

	text, err := os.ReadFile(filepath.Join(out, "talk.speech.txt"))
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if strings.TrimSpace(string(text)) != "hello world" {
		t.Errorf("transcript = %q, want %q", text, "hello world")
	}

	if _, err := os.Stat(filepath.Join(out, "silence.speech.wav")); !os.IsNotExist(err) {
		t.Errorf("silent input should produce no output, stat err = %v", err)
	}
	if tr.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", tr.calls)
	}
}

func TestProcessFilesCountsFailures(t *testing.T) {
	in := t.TempDir()
	good := filepath.Join(in, "good.wav")
	writeSpeechWAV(t, good)
	bad := filepath.Join(in, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	err := processFiles(context.Background(), testPipeline(nil), []string{good, bad, filepath.Join(in, "missing.wav")}, out, 1)
	if err == nil {
		t.Fatal("processFiles() should fail when a file fails")
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("error = %q, want it to count 2 of 3 failures", err)
	}
	if _, err := os.Stat(filepath.Join(out, "good.speech.wav")); err != nil {
		t.Errorf("good file should still be processed: %v", err)
	}
}

func TestProcessFilesTranscriptionError(t *testing.T) {
	in := t.TempDir()
	f := filepath.Join(in, "talk.wav")
	writeSpeechWAV(t, f)

	tr := &fakeTranscriber{err: errors.New("decoder crashed")}
	err := processFiles(context.Background(), testPipeline(tr), []string{f}, t.TempDir(), 1)
	if err == nil {
		t.Fatal("processFiles() should report the transcription failure")
	}
}

func TestSpeechPath(t *testing.T) {
	tests := []struct {
		dir, in, want string
	}{
		{"/out", "/data/talk.wav", "/out/talk.speech.wav"},
		{"/out", "meeting.2024.wav", "/out/meeting.2024.speech.wav"},
		{"out", "noext", "out/noext.speech.wav"},
	}
	for _, tt := range tests {
		if got := speechPath(tt.dir, tt.in); got != filepath.FromSlash(tt.want) {
			t.Errorf("speechPath(%q, %q) = %q, want %q", tt.dir, tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, source, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if source != "defaults" {
		t.Errorf("source = %q, want %q", source, "defaults")
	}
	if c.Workers != config.Default().Workers {
		t.Errorf("Workers = %d, want default", c.Workers)
	}

	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("workers: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, source, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%q) error = %v", path, err)
	}
	if source != path || c.Workers != 7 {
		t.Errorf("loadConfig(%q) = workers %d from %q, want 7 from the file", path, c.Workers, source)
	}
}
