package stt

import (
	"context"
	"fmt"
	"os"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, audioPath string) (Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("audio file: %w", err)
	}
	return Result{
		Text:       fmt.Sprintf("[mock transcript of %d bytes]", info.Size()),
		Language:   "en",
		Confidence: 0,
	}, nil
}
