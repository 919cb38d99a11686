package stt

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anant5441/medvoice/internal/config"
	"github.com/anant5441/medvoice/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixedRecognizer struct {
	result Result
	err    error
}

func (r fixedRecognizer) Transcribe(context.Context, string) (Result, error) {
	return r.result, r.err
}

func TestTranscribeReturnsTextAndLanguage(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "sample.mp3")
	if err := os.WriteFile(audio, []byte("audio bytes"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	svc := NewService(context.Background(), config.STTConfig{Enabled: true, Mode: "mock"}, nil,
		fixedRecognizer{result: Result{Text: "my head hurts", Language: "en", Confidence: 0.9}}, newLogger())

	transcript := svc.transcribe(context.Background(), protocol.TranscribeRequest{SessionID: "s1", AudioPath: audio})
	if transcript.Error != "" {
		t.Fatalf("unexpected error: %s", transcript.Error)
	}
	if transcript.Text != "my head hurts" || transcript.Language != "en" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestTranscribeMissingPath(t *testing.T) {
	svc := NewService(context.Background(), config.STTConfig{Enabled: true, Mode: "mock"}, nil,
		fixedRecognizer{result: Result{Text: "unused"}}, newLogger())

	transcript := svc.transcribe(context.Background(), protocol.TranscribeRequest{SessionID: "s1"})
	if transcript.Error == "" {
		t.Fatal("expected error for missing audio path")
	}
	if transcript.Text != "" {
		t.Fatal("expected no transcript on failure")
	}
}

func TestMockRecognizerRequiresFile(t *testing.T) {
	rec := NewMockRecognizer()
	if _, err := rec.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatal("expected error for unreadable audio file")
	}
}

func TestMockRecognizerReturnsLanguage(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "sample.mp3")
	if err := os.WriteFile(audio, []byte("audio bytes"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	rec := NewMockRecognizer()
	result, err := rec.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text == "" || result.Language == "" {
		t.Fatalf("expected non-empty text and language, got %+v", result)
	}
}

func TestNewExecRecognizerRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecRecognizer(config.STTConfig{Mode: "exec", Command: "  "}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecRecognizerMissingAudio(t *testing.T) {
	rec, err := NewExecRecognizer(config.STTConfig{Mode: "exec", Command: "whisper-json"})
	if err != nil {
		t.Fatalf("new exec recognizer: %v", err)
	}
	_, err = rec.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil || !strings.Contains(err.Error(), "audio file") {
		t.Fatalf("expected audio file error, got %v", err)
	}
}
