package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anant5441/medvoice/internal/bus"
	"github.com/anant5441/medvoice/internal/config"
	"github.com/anant5441/medvoice/internal/protocol"
	"github.com/nats-io/nats.go"
)

type Service struct {
	cfg        config.STTConfig
	bus        *bus.Client
	recognizer Recognizer
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	sub        *nats.Subscription
	wg         sync.WaitGroup
	ready      bool
}

func NewService(parent context.Context, cfg config.STTConfig, busClient *bus.Client, recognizer Recognizer, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:        cfg,
		bus:        busClient,
		recognizer: recognizer,
		logger:     logger.With(slog.String("component", "stt-service")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTranscribe, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe transcribe requests: %w", err)
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
	var req protocol.TranscribeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode transcribe request", slogError(err))
		s.respond(msg, protocol.Transcript{Error: "malformed transcribe request", Timestamp: time.Now().UTC()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 120*time.Second)
		defer cancel()

		s.respond(msg, s.transcribe(ctx, req))
	}()
}

func (s *Service) transcribe(ctx context.Context, req protocol.TranscribeRequest) protocol.Transcript {
	transcript := protocol.Transcript{SessionID: req.SessionID, Timestamp: time.Now().UTC()}
	if req.AudioPath == "" {
		transcript.Error = "audio path is required"
		return transcript
	}

	start := time.Now()
	result, err := s.recognizer.Transcribe(ctx, req.AudioPath)
	if err != nil {
		transcript.Error = fmt.Sprintf("transcription error: %v", err)
		s.logger.Warn("transcription failed",
			slog.String("session_id", req.SessionID),
			slogError(err))
		return transcript
	}

	s.logger.Info("transcription complete",
		slog.String("session_id", req.SessionID),
		slog.String("language", result.Language),
		slog.Duration("latency", time.Since(start)))

	transcript.Text = result.Text
	transcript.Language = result.Language
	transcript.Confidence = result.Confidence
	return transcript
}

func (s *Service) respond(msg *nats.Msg, transcript protocol.Transcript) {
	data, err := json.Marshal(transcript)
	if err != nil {
		s.logger.Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to transcribe request", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
