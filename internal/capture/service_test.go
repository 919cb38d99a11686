package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anant5441/medvoice/internal/config"
	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(dir string) config.CaptureConfig {
	return config.CaptureConfig{
		Enabled:            true,
		Mode:               "mock",
		RecordingsDir:      dir,
		SampleRate:         16000,
		Channels:           1,
		MaxWaitMS:          1000,
		PhraseLimitMS:      1000,
		OnsetThresholdDBFS: -40,
		Bitrate:            "128k",
	}
}

// copyEncoder stands in for ffmpeg so tests do not depend on it.
func copyEncoder(_ context.Context, wavPath, mp3Path, _ string) error {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mp3Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(mp3Path, data, 0o644)
}

type silentBackend struct{}

func (silentBackend) Name() string    { return "silent" }
func (silentBackend) Available() bool { return true }

func (silentBackend) Record(_ context.Context, req RecordRequest) error {
	f, err := os.Create(req.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	frames := int(time.Duration(req.SampleRate) * req.Duration / time.Second)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: req.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	enc := wav.NewEncoder(f, req.SampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

type failingBackend struct{}

func (failingBackend) Name() string    { return "failing" }
func (failingBackend) Available() bool { return true }

func (failingBackend) Record(context.Context, RecordRequest) error {
	return fmt.Errorf("device not found")
}

func TestCaptureStoresRecording(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(context.Background(), testConfig(dir), nil, NewMockBackend(), newLogger())
	svc.encode = copyEncoder

	result := svc.capture(context.Background(), "session-1", time.Second, time.Second)
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	want := filepath.Join(dir, "session-1.mp3")
	if result.AudioPath != want {
		t.Fatalf("expected audio path %s, got %s", want, result.AudioPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected stored recording: %v", err)
	}
	if result.DurationMS <= 0 {
		t.Fatalf("expected positive duration, got %d", result.DurationMS)
	}
}

func TestCaptureTimeoutLeavesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	previous := filepath.Join(dir, "session-1.mp3")
	if err := os.WriteFile(previous, []byte("earlier recording"), 0o644); err != nil {
		t.Fatalf("seed previous recording: %v", err)
	}

	svc := NewService(context.Background(), testConfig(dir), nil, silentBackend{}, newLogger())
	svc.encode = copyEncoder

	result := svc.capture(context.Background(), "session-1", time.Second, time.Second)
	if result.Error == "" {
		t.Fatal("expected timeout error for silent input")
	}
	if !strings.Contains(result.Error, "no speech detected") {
		t.Fatalf("expected speech timeout error, got %q", result.Error)
	}

	data, err := os.ReadFile(previous)
	if err != nil {
		t.Fatalf("previous recording gone: %v", err)
	}
	if string(data) != "earlier recording" {
		t.Fatal("previous recording was modified")
	}
}

func TestCaptureBackendFailure(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(context.Background(), testConfig(dir), nil, failingBackend{}, newLogger())
	svc.encode = copyEncoder

	result := svc.capture(context.Background(), "session-1", time.Second, time.Second)
	if !strings.Contains(result.Error, "recording error") {
		t.Fatalf("expected recording error, got %q", result.Error)
	}
	if result.AudioPath != "" {
		t.Fatalf("expected no audio path on failure, got %s", result.AudioPath)
	}
}

func TestCaptureRequiresSessionID(t *testing.T) {
	svc := NewService(context.Background(), testConfig(t.TempDir()), nil, NewMockBackend(), newLogger())
	svc.encode = copyEncoder

	result := svc.capture(context.Background(), "", time.Second, time.Second)
	if result.Error == "" {
		t.Fatal("expected error for missing session id")
	}
}
