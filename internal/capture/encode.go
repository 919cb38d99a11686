package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// encodeFunc converts a WAV recording into the stored MP3 artifact.
type encodeFunc func(ctx context.Context, wavPath, mp3Path, bitrate string) error

// encodeMP3 shells out to ffmpeg. Output is written to a temp file in the
// destination directory and renamed into place, so a failed encode never
// clobbers an existing recording.
func encodeMP3(ctx context.Context, wavPath, mp3Path, bitrate string) error {
	dir := filepath.Dir(mp3Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".encode_*.mp3")
	if err != nil {
		return fmt.Errorf("temp encode file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", wavPath,
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		tmpPath,
	}

	command := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		os.Remove(tmpPath)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg encode failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg encode failed: %w", err)
	}

	if err := os.Rename(tmpPath, mp3Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store recording: %w", err)
	}
	return nil
}
