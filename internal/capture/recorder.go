package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/anant5441/medvoice/internal/config"
)

var ErrNoBackendAvailable = errors.New("no recording backend available")

// RecordRequest describes one bounded microphone capture.
type RecordRequest struct {
	OutputPath string
	Duration   time.Duration
	SampleRate int
	Channels   int
	Device     string
}

// Backend records a single WAV file from an input device.
type Backend interface {
	Name() string
	Available() bool
	Record(ctx context.Context, req RecordRequest) error
}

// NewBackend selects the recorder implementation for the configured mode.
func NewBackend(cfg config.CaptureConfig) (Backend, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockBackend(), nil
	case "arecord":
		return newALSABackend(), nil
	case "ffmpeg":
		return newFFmpegBackend(), nil
	case "exec":
		return newExecBackend(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
