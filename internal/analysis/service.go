package analysis

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
	cfg       config.AnalysisConfig
	bus       *bus.Client
	generator Generator
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	sub       *nats.Subscription
	wg        sync.WaitGroup
	ready     bool
}

func NewService(parent context.Context, cfg config.AnalysisConfig, busClient *bus.Client, generator Generator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		generator: generator,
		logger:    logger.With(slog.String("component", "analysis-service")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectAnalysisRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe analysis requests: %w", err)
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
	var req protocol.AnalysisRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode analysis request", slogError(err))
		s.respond(msg, protocol.AnalysisResult{Error: "malformed analysis request", Timestamp: time.Now().UTC()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
		defer cancel()

		s.respond(msg, s.analyze(ctx, req))
	}()
}

func (s *Service) analyze(ctx context.Context, req protocol.AnalysisRequest) protocol.AnalysisResult {
	result := protocol.AnalysisResult{SessionID: req.SessionID, Timestamp: time.Now().UTC()}
	if req.Transcript == "" {
		result.Error = "transcript is required"
		return result
	}

	generated, err := s.generator.Generate(ctx, Request{
		SessionID: req.SessionID,
		Prompt:    BuildPrompt(req.Transcript),
	})
	if err != nil {
		result.Error = fmt.Sprintf("analysis error: %v", err)
		s.logger.Warn("analysis failed",
			slog.String("session_id", req.SessionID),
			slogError(err))
		return result
	}

	s.logger.Info("analysis complete",
		slog.String("session_id", req.SessionID),
		slog.String("model", generated.Model),
		slog.Duration("latency", generated.Latency))

	result.Content = generated.Content
	result.Model = generated.Model
	result.LatencyMS = generated.Latency.Milliseconds()
	return result
}

func (s *Service) respond(msg *nats.Msg, result protocol.AnalysisResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal analysis result", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to analysis request", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
