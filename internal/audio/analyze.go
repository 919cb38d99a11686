package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("invalid wav file")

// windowDuration is the RMS analysis window. 20ms matches the frame size
// speech models are typically fed with.
const windowDuration = 20 * time.Millisecond

// Profile summarizes the signal level of a recorded utterance.
type Profile struct {
	SampleRate  int
	Channels    int
	Samples     int
	Duration    time.Duration
	RMSdBFS     float64
	PeakdBFS    float64
	HasSpeech   bool
	SpeechOnset time.Duration
}

// Analyze decodes a WAV file and locates the first analysis window whose RMS
// level exceeds thresholdDBFS. A file with no such window has HasSpeech false.
func Analyze(path string, thresholdDBFS float64) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Profile{}, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Profile{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Profile{}, ErrInvalidWAV
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	fullScale := float64(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	sampleRate := buf.Format.SampleRate
	frames := len(buf.Data) / channels

	profile := Profile{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    frames,
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}
	if frames == 0 {
		profile.RMSdBFS = math.Inf(-1)
		profile.PeakdBFS = math.Inf(-1)
		return profile, nil
	}

	windowFrames := int(time.Duration(sampleRate) * windowDuration / time.Second)
	if windowFrames <= 0 {
		windowFrames = 1
	}

	var peak, sumSquares float64
	onsetFrame := -1
	for start := 0; start < frames; start += windowFrames {
		end := start + windowFrames
		if end > frames {
			end = frames
		}
		var windowSquares float64
		for frame := start; frame < end; frame++ {
			// Mix channels down to one magnitude per frame.
			var value float64
			for ch := 0; ch < channels; ch++ {
				value += float64(buf.Data[frame*channels+ch]) / fullScale
			}
			value /= float64(channels)

			abs := math.Abs(value)
			if abs > peak {
				peak = abs
			}
			windowSquares += value * value
		}
		sumSquares += windowSquares

		if onsetFrame < 0 {
			rms := math.Sqrt(windowSquares / float64(end-start))
			if amplitudeToDBFS(rms) > thresholdDBFS {
				onsetFrame = start
			}
		}
	}

	profile.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(frames)))
	profile.PeakdBFS = amplitudeToDBFS(peak)
	if onsetFrame >= 0 {
		profile.HasSpeech = true
		profile.SpeechOnset = time.Duration(onsetFrame) * time.Second / time.Duration(sampleRate)
	}
	return profile, nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
