// Package transcribe turns extracted speech into text.
//
// The only backend is whisper.cpp through its Go bindings. Input is the mono
// 16 kHz output of the speech package.
package transcribe

import (
	"fmt"

	"github.com/chaz8081/speechprep/internal/config"
)

// Transcriber converts audio samples to text.
type Transcriber interface {
	// Process transcribes mono 16kHz float32 audio samples to text.
	Process(samples []float32) (string, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Transcriber based on the config backend setting.
func New(cfg *config.TranscribeConfig) (Transcriber, error) {
	switch cfg.Backend {
	case "whisper", "":
		t, err := NewWhisperTranscriber(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		t.SetLanguage(cfg.Language)
		return t, nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper)", cfg.Backend)
	}
}
