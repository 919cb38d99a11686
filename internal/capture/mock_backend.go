package capture

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// mockBackend synthesizes an utterance instead of touching a device: 200ms of
// leading silence followed by a 440Hz tone for the remainder of the window.
type mockBackend struct{}

func NewMockBackend() Backend { return &mockBackend{} }

func (b *mockBackend) Name() string { return "mock" }

func (b *mockBackend) Available() bool { return true }

func (b *mockBackend) Record(ctx context.Context, req RecordRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if req.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}

	duration := req.Duration
	if duration <= 0 || duration > 2*time.Second {
		duration = 2 * time.Second
	}
	leadIn := 200 * time.Millisecond
	if leadIn > duration {
		leadIn = duration
	}

	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := req.Channels
	if channels <= 0 {
		channels = 1
	}

	totalFrames := int(time.Duration(sampleRate) * duration / time.Second)
	silentFrames := int(time.Duration(sampleRate) * leadIn / time.Second)

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, totalFrames*channels),
	}
	for frame := silentFrames; frame < totalFrames; frame++ {
		sample := int(0.5 * math.Sin(2*math.Pi*440*float64(frame-silentFrames)/float64(sampleRate)) * math.MaxInt16)
		for ch := 0; ch < channels; ch++ {
			buf.Data[frame*channels+ch] = sample
		}
	}

	f, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("create mock recording: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write mock recording: %w", err)
	}
	return enc.Close()
}
