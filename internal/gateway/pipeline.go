package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anant5441/medvoice/internal/bus"
	"github.com/anant5441/medvoice/internal/protocol"
)

// Pipeline is the gateway's view of the three stage services. The bus-backed
// implementation is the only one used at runtime; tests substitute their own.
type Pipeline interface {
	Capture(ctx context.Context, req protocol.CaptureRequest) (protocol.CaptureResult, error)
	Transcribe(ctx context.Context, req protocol.TranscribeRequest) (protocol.Transcript, error)
	Analyze(ctx context.Context, req protocol.AnalysisRequest) (protocol.AnalysisResult, error)
}

// busPipeline issues one request/reply exchange per stage.
type busPipeline struct {
	bus               *bus.Client
	captureTimeout    time.Duration
	transcribeTimeout time.Duration
	analysisTimeout   time.Duration
}

func NewBusPipeline(busClient *bus.Client, captureWindow time.Duration) Pipeline {
	return &busPipeline{
		bus:               busClient,
		captureTimeout:    captureWindow + 30*time.Second,
		transcribeTimeout: 130 * time.Second,
		analysisTimeout:   70 * time.Second,
	}
}

func (p *busPipeline) Capture(_ context.Context, req protocol.CaptureRequest) (protocol.CaptureResult, error) {
	var result protocol.CaptureResult
	if err := p.request(protocol.SubjectCaptureRequest, req, &result, p.captureTimeout); err != nil {
		return protocol.CaptureResult{}, err
	}
	return result, nil
}

func (p *busPipeline) Transcribe(_ context.Context, req protocol.TranscribeRequest) (protocol.Transcript, error) {
	var transcript protocol.Transcript
	if err := p.request(protocol.SubjectTranscribe, req, &transcript, p.transcribeTimeout); err != nil {
		return protocol.Transcript{}, err
	}
	return transcript, nil
}

func (p *busPipeline) Analyze(_ context.Context, req protocol.AnalysisRequest) (protocol.AnalysisResult, error) {
	var result protocol.AnalysisResult
	if err := p.request(protocol.SubjectAnalysisRequest, req, &result, p.analysisTimeout); err != nil {
		return protocol.AnalysisResult{}, err
	}
	return result, nil
}

func (p *busPipeline) request(subject string, req any, reply any, timeout time.Duration) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", subject, err)
	}
	msg, err := p.bus.Request(subject, data, timeout)
	if err != nil {
		return fmt.Errorf("%s request: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return nil
}
