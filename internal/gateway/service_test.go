package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anant5441/medvoice/internal/config"
	"github.com/anant5441/medvoice/internal/journal"
	"github.com/anant5441/medvoice/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePipeline answers stage requests in-process.
type fakePipeline struct {
	captureResult protocol.CaptureResult
	transcript    protocol.Transcript
	analysis      protocol.AnalysisResult
	analyzeCalls  int
}

func (p *fakePipeline) Capture(_ context.Context, req protocol.CaptureRequest) (protocol.CaptureResult, error) {
	result := p.captureResult
	result.SessionID = req.SessionID
	return result, nil
}

func (p *fakePipeline) Transcribe(_ context.Context, req protocol.TranscribeRequest) (protocol.Transcript, error) {
	transcript := p.transcript
	transcript.SessionID = req.SessionID
	return transcript, nil
}

func (p *fakePipeline) Analyze(_ context.Context, req protocol.AnalysisRequest) (protocol.AnalysisResult, error) {
	p.analyzeCalls++
	result := p.analysis
	result.SessionID = req.SessionID
	return result, nil
}

func happyPipeline() *fakePipeline {
	return &fakePipeline{
		captureResult: protocol.CaptureResult{AudioPath: "/data/recordings/x.mp3", DurationMS: 2100},
		transcript:    protocol.Transcript{Text: "my head hurts", Language: "en"},
		analysis:      protocol.AnalysisResult{Content: "1. Summary: headache", Model: "test"},
	}
}

func newTestServer(t *testing.T, pipeline Pipeline) *httptest.Server {
	t.Helper()
	store, err := journal.Open(context.Background(), config.JournalConfig{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mux := http.NewServeMux()
	NewService(pipeline, store, newLogger()).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res.StatusCode, body
}

func createSession(t *testing.T, server *httptest.Server) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/sessions")
	if status != http.StatusCreated {
		t.Fatalf("create session: status %d", status)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create session: missing id")
	}
	return id
}

func TestRecordThenAnalyze(t *testing.T) {
	server := newTestServer(t, happyPipeline())
	id := createSession(t, server)

	status, body := doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	if status != http.StatusOK {
		t.Fatalf("record: status %d body %v", status, body)
	}
	if body["can_analyze"] != true {
		t.Fatal("expected analyze to be enabled after recording")
	}

	status, body = doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")
	if status != http.StatusOK {
		t.Fatalf("analyze: status %d body %v", status, body)
	}
	// The displayed analysis is the generated text verbatim.
	if body["analysis"] != "1. Summary: headache" {
		t.Fatalf("expected verbatim analysis, got %v", body["analysis"])
	}
	if body["transcript"] != "my head hurts" || body["language"] != "en" {
		t.Fatalf("unexpected transcript fields: %v", body)
	}
	if body["state"] != "processed" {
		t.Fatalf("expected processed state, got %v", body["state"])
	}
	if body["can_analyze"] != false {
		t.Fatal("analyze must be disabled immediately after a successful analysis")
	}
}

func TestAnalyzeWithoutRecordingRejected(t *testing.T) {
	server := newTestServer(t, happyPipeline())
	id := createSession(t, server)

	status, body := doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")
	if status != http.StatusConflict {
		t.Fatalf("expected conflict, got %d body %v", status, body)
	}
}

func TestSecondAnalyzeRejectedUntilNewRecording(t *testing.T) {
	pipeline := happyPipeline()
	server := newTestServer(t, pipeline)
	id := createSession(t, server)

	doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")

	status, _ := doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")
	if status != http.StatusConflict {
		t.Fatalf("expected conflict for second analyze, got %d", status)
	}
	if pipeline.analyzeCalls != 1 {
		t.Fatalf("expected a single analysis call, got %d", pipeline.analyzeCalls)
	}

	// A fresh recording re-arms the analyze action.
	doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")
	if status != http.StatusOK {
		t.Fatalf("expected analyze to succeed after re-recording, got %d", status)
	}
}

func TestCaptureFailureSurfacedAndRetryable(t *testing.T) {
	pipeline := happyPipeline()
	pipeline.captureResult = protocol.CaptureResult{Error: "no speech detected within 20s"}
	server := newTestServer(t, pipeline)
	id := createSession(t, server)

	status, body := doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	if status != http.StatusBadGateway {
		t.Fatalf("expected bad gateway, got %d", status)
	}
	if !strings.Contains(fmt.Sprint(body["error"]), "no speech detected") {
		t.Fatalf("expected timeout message, got %v", body["error"])
	}

	// The session stays usable; a retry with a working capture succeeds.
	pipeline.captureResult = protocol.CaptureResult{AudioPath: "/data/recordings/x.mp3"}
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	if status != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", status)
	}
}

func TestTranscriptionFailureSkipsAnalysis(t *testing.T) {
	pipeline := happyPipeline()
	pipeline.transcript = protocol.Transcript{Error: "transcription error: decode failed"}
	server := newTestServer(t, pipeline)
	id := createSession(t, server)

	doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/record")
	status, body := doJSON(t, http.MethodPost, server.URL+"/api/sessions/"+id+"/analyze")
	if status != http.StatusBadGateway {
		t.Fatalf("expected bad gateway, got %d body %v", status, body)
	}
	if pipeline.analyzeCalls != 0 {
		t.Fatal("analysis must be skipped when transcription fails")
	}
}

func TestUnknownSession(t *testing.T) {
	server := newTestServer(t, happyPipeline())
	status, _ := doJSON(t, http.MethodPost, server.URL+"/api/sessions/nope/record")
	if status != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", status)
	}
}
