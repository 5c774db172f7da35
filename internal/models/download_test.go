package models

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestDownload(t *testing.T) {
	content := []byte("fake ggml model bytes")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "model.bin")
	var progress bytes.Buffer
	if err := Download(context.Background(), srv.URL+"/model.bin", dest, &progress); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Download() content = %q, want %q", got, content)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should be gone, stat err = %v", err)
	}
	if !strings.Contains(progress.String(), "model.bin") {
		t.Errorf("progress output %q should name the file", progress.String())
	}

	// Second call finds the file and does not fetch again.
	if err := Download(context.Background(), srv.URL+"/model.bin", dest, nil); err != nil {
		t.Fatalf("second Download() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.bin")
	err := Download(context.Background(), srv.URL+"/missing.bin", dest, nil)
	if err == nil {
		t.Fatal("Download() should fail on HTTP 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q should mention the status", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("dest should not exist after failure, stat err = %v", err)
	}
}

func TestDownloadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "model.bin")
	if err := Download(ctx, srv.URL, dest, nil); err == nil {
		t.Fatal("Download() with canceled context should fail")
	}
}

func TestDownloadWhisper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-tiny.en.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ggml"))
	}))
	defer srv.Close()

	old := whisperBaseURL
	whisperBaseURL = srv.URL
	t.Cleanup(func() { whisperBaseURL = old })

	dir := t.TempDir()
	path, err := DownloadWhisper(context.Background(), dir, "tiny.en", nil)
	if err != nil {
		t.Fatalf("DownloadWhisper() error = %v", err)
	}
	if want := filepath.Join(dir, "ggml-tiny.en.bin"); path != want {
		t.Errorf("DownloadWhisper() path = %q, want %q", path, want)
	}
}

func TestDownloadWhisperUnknownModel(t *testing.T) {
	_, err := DownloadWhisper(context.Background(), t.TempDir(), "huge", nil)
	if err == nil {
		t.Fatal("DownloadWhisper() should reject unknown models")
	}
}

func TestWhisperFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultWhisperModel},
		{"base.en", "ggml-base.en.bin"},
		{"ggml-small.bin", "ggml-small.bin"},
		{"medium", "ggml-medium.bin"},
	}
	for _, tt := range tests {
		if got := whisperFileName(tt.in); got != tt.want {
			t.Errorf("whisperFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressWriter(t *testing.T) {
	var sink, out bytes.Buffer
	pw := &progressWriter{
		writer: &sink,
		out:    &out,
		total:  100,
		label:  "test",
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
	if !strings.Contains(out.String(), "(50%)") {
		t.Errorf("progress = %q, want 50%%", out.String())
	}
}
