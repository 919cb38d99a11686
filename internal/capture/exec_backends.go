package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

type alsaBackend struct{}

func newALSABackend() Backend { return &alsaBackend{} }

func (b *alsaBackend) Name() string { return "arecord" }

func (b *alsaBackend) Available() bool { return commandAvailable("arecord") }

func (b *alsaBackend) Record(ctx context.Context, req RecordRequest) error {
	if req.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}

	args := []string{
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(req.SampleRate),
		"-c", strconv.Itoa(req.Channels),
		"-d", strconv.Itoa(int(req.Duration / time.Second)),
	}
	if req.Device != "" {
		args = append(args, "-D", req.Device)
	}
	args = append(args, req.OutputPath)

	return runRecorder(ctx, "arecord", args)
}

type ffmpegBackend struct{}

func newFFmpegBackend() Backend { return &ffmpegBackend{} }

func (b *ffmpegBackend) Name() string { return "ffmpeg" }

func (b *ffmpegBackend) Available() bool { return commandAvailable("ffmpeg") }

func (b *ffmpegBackend) Record(ctx context.Context, req RecordRequest) error {
	if req.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}

	input := req.Device
	if input == "" {
		input = "default"
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "alsa", "-i", input,
		"-t", strconv.Itoa(int(req.Duration / time.Second)),
		"-ac", strconv.Itoa(req.Channels),
		"-ar", strconv.Itoa(req.SampleRate),
		"-c:a", "pcm_s16le",
		req.OutputPath,
	}

	return runRecorder(ctx, "ffmpeg", args)
}

// execBackend delegates recording to a user-supplied helper command. The
// helper receives --output, --duration-ms, --rate, --channels and optionally
// --device, and must write a PCM WAV to the output path.
type execBackend struct {
	cmd []string
}

func newExecBackend(command string) (Backend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execBackend{cmd: args}, nil
}

func (b *execBackend) Name() string { return "exec" }

func (b *execBackend) Available() bool { return commandAvailable(b.cmd[0]) }

func (b *execBackend) Record(ctx context.Context, req RecordRequest) error {
	if req.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}

	args := append([]string{}, b.cmd[1:]...)
	args = append(args,
		"--output", req.OutputPath,
		"--duration-ms", strconv.Itoa(int(req.Duration/time.Millisecond)),
		"--rate", strconv.Itoa(req.SampleRate),
		"--channels", strconv.Itoa(req.Channels),
	)
	if req.Device != "" {
		args = append(args, "--device", req.Device)
	}

	return runRecorder(ctx, b.cmd[0], args)
}

func runRecorder(ctx context.Context, name string, args []string) error {
	command := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
