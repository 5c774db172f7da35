// Package models fetches whisper ggml models for the transcription step.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultWhisperModel is the model named in the default config.
const DefaultWhisperModel = "ggml-base.en.bin"

// whisperBaseURL is the HuggingFace repo serving ggml whisper models.
var whisperBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// WhisperModels lists the ggml model files DownloadWhisper accepts.
var WhisperModels = []string{
	"ggml-tiny.en.bin",
	"ggml-tiny.bin",
	"ggml-base.en.bin",
	"ggml-base.bin",
	"ggml-small.en.bin",
	"ggml-small.bin",
	"ggml-medium.en.bin",
	"ggml-medium.bin",
	"ggml-large-v3.bin",
}

// DownloadWhisper downloads a ggml whisper model into dir and returns its
// path. name may omit the "ggml-" prefix and ".bin" suffix ("base.en").
func DownloadWhisper(ctx context.Context, dir, name string, progress io.Writer) (string, error) {
	file := whisperFileName(name)
	if !slices.Contains(WhisperModels, file) {
		return "", fmt.Errorf("models: unknown whisper model %q (available: %s)", name, strings.Join(WhisperModels, ", "))
	}
	dest := filepath.Join(dir, file)
	if err := Download(ctx, whisperBaseURL+"/"+file, dest, progress); err != nil {
		return "", err
	}
	return dest, nil
}

func whisperFileName(name string) string {
	if name == "" {
		return DefaultWhisperModel
	}
	if !strings.HasPrefix(name, "ggml-") {
		name = "ggml-" + name
	}
	if !strings.HasSuffix(name, ".bin") {
		name += ".bin"
	}
	return name
}

// Download fetches url into dest, creating parent directories. A non-empty
// file already at dest is kept and nothing is fetched. Progress lines go to
// progress when it is non-nil.
func Download(ctx context.Context, url, dest string, progress io.Writer) error {
	if progress == nil {
		progress = io.Discard
	}
	label := filepath.Base(dest)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		fmt.Fprintf(progress, "  %s already exists: %s (%.0f MB)\n", label, dest, float64(info.Size())/(1024*1024))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("models: creating models dir: %w", err)
	}

	fmt.Fprintf(progress, "  Downloading %s\n", label)
	fmt.Fprintf(progress, "  URL: %s\n", url)
	fmt.Fprintf(progress, "  Destination: %s\n", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("models: building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("models: downloading %s: %w", label, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s failed: HTTP %d", label, resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("models: creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    progress,
		total:  resp.ContentLength,
		label:  label,
	}

	written, err := io.Copy(pw, resp.Body)
	_ = f.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("models: writing %s: %w", label, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("models: short download of %s: got %d of %d bytes", label, written, resp.ContentLength)
	}

	fmt.Fprintf(progress, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("models: moving %s into place: %w", label, err)
	}

	return nil
}

// progressWriter wraps an io.Writer and prints download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
