package stt

import (
	"context"
)

// Result captures recognizer output.
type Result struct {
	Text       string
	Language   string
	Confidence float64
}

// Recognizer abstracts STT backends. Implementations load their model per
// invocation; nothing is cached across calls.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
