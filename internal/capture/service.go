package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anant5441/medvoice/internal/audio"
	"github.com/anant5441/medvoice/internal/bus"
	"github.com/anant5441/medvoice/internal/config"
	"github.com/anant5441/medvoice/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service answers capture requests on the bus. A single microphone backs all
// sessions, so captures are serialized by the subscription's delivery order.
type Service struct {
	cfg     config.CaptureConfig
	bus     *bus.Client
	backend Backend
	encode  encodeFunc
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	sub     *nats.Subscription
	wg      sync.WaitGroup
	ready   bool
}

func NewService(parent context.Context, cfg config.CaptureConfig, busClient *bus.Client, backend Backend, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:     cfg,
		bus:     busClient,
		backend: backend,
		encode:  encodeMP3,
		logger:  logger.With(slog.String("component", "capture-service")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectCaptureRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe capture requests: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.CaptureRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode capture request", slogError(err))
		s.respond(msg, protocol.CaptureResult{Error: "malformed capture request", Timestamp: time.Now().UTC()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		maxWait := durationOrDefault(req.MaxWaitMS, s.cfg.MaxWaitMS)
		phraseLimit := durationOrDefault(req.PhraseLimitMS, s.cfg.PhraseLimitMS)

		ctx, cancel := context.WithTimeout(s.ctx, maxWait+phraseLimit+15*time.Second)
		defer cancel()

		result := s.capture(ctx, req.SessionID, maxWait, phraseLimit)
		if result.Error != "" {
			s.logger.Warn("capture failed",
				slog.String("session_id", req.SessionID),
				slog.String("error", result.Error))
		} else {
			s.logger.Info("capture complete",
				slog.String("session_id", req.SessionID),
				slog.String("audio_path", result.AudioPath),
				slog.Int64("duration_ms", result.DurationMS))
		}
		s.respond(msg, result)
	}()
}

// capture records one utterance and stores it as MP3. The recording window
// covers the speech-onset wait plus the phrase limit; the stored file for the
// session is only replaced after a successful encode.
func (s *Service) capture(ctx context.Context, sessionID string, maxWait, phraseLimit time.Duration) protocol.CaptureResult {
	result := protocol.CaptureResult{SessionID: sessionID, Timestamp: time.Now().UTC()}
	if sessionID == "" {
		result.Error = "session id is required"
		return result
	}

	tmp, err := os.CreateTemp("", "medvoice_capture_*.wav")
	if err != nil {
		result.Error = fmt.Sprintf("temp file: %v", err)
		return result
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	recordReq := RecordRequest{
		OutputPath: tmpPath,
		Duration:   maxWait + phraseLimit,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Device:     s.cfg.Device,
	}
	if err := s.backend.Record(ctx, recordReq); err != nil {
		result.Error = fmt.Sprintf("recording error: %v", err)
		return result
	}

	profile, err := audio.Analyze(tmpPath, s.cfg.OnsetThresholdDBFS)
	if err != nil {
		result.Error = fmt.Sprintf("recording error: %v", err)
		return result
	}
	if !profile.HasSpeech || profile.SpeechOnset > maxWait {
		result.Error = fmt.Sprintf("no speech detected within %s", maxWait)
		return result
	}

	audioPath := filepath.Join(s.cfg.RecordingsDir, sessionID+".mp3")
	if err := s.encode(ctx, tmpPath, audioPath, s.cfg.Bitrate); err != nil {
		result.Error = fmt.Sprintf("encoding error: %v", err)
		return result
	}

	result.AudioPath = audioPath
	result.DurationMS = profile.Duration.Milliseconds()
	result.SpeechOnsetMS = profile.SpeechOnset.Milliseconds()
	return result
}

func (s *Service) respond(msg *nats.Msg, result protocol.CaptureResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal capture result", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to capture request", slogError(err))
	}
}

func durationOrDefault(valueMS, fallbackMS int) time.Duration {
	if valueMS > 0 {
		return time.Duration(valueMS) * time.Millisecond
	}
	return time.Duration(fallbackMS) * time.Millisecond
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
