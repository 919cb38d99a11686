package gateway

import (
	"context"
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/anant5441/medvoice/internal/journal"
	"github.com/anant5441/medvoice/internal/protocol"
	"github.com/anant5441/medvoice/internal/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//go:embed web/index.html
var webFS embed.FS

// Service is the presentation shell: a JSON API plus a static two-button
// page. Each session is serialized by its own lock, so one interaction runs
// at a time per session while different sessions proceed independently.
type Service struct {
	pipeline Pipeline
	journal  *journal.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	stages   metric.Int64Counter

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

type sessionHandle struct {
	mu sync.Mutex
	s  *session.Session
}

func NewService(pipeline Pipeline, store *journal.Store, logger *slog.Logger) *Service {
	stages, err := otel.Meter("medvoice/gateway").Int64Counter("medvoice.stage.requests")
	if err != nil {
		logger.Warn("failed to create stage counter", slogError(err))
	}
	return &Service{
		pipeline: pipeline,
		journal:  store,
		logger:   logger.With(slog.String("component", "gateway")),
		tracer:   otel.Tracer("medvoice/gateway"),
		stages:   stages,
		sessions: make(map[string]*sessionHandle),
	}
}

// Register attaches the gateway routes to the runtime mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle("GET /{$}", http.HandlerFunc(s.handleIndex))
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleListEvents)
	mux.HandleFunc("POST /api/sessions/{id}/record", s.handleRecord)
	mux.HandleFunc("POST /api/sessions/{id}/analyze", s.handleAnalyze)
}

type sessionView struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	CanRecord  bool      `json:"can_record"`
	CanAnalyze bool      `json:"can_analyze"`
	AudioPath  string    `json:"audio_path,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Language   string    `json:"language,omitempty"`
	Analysis   string    `json:"analysis,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:         sess.ID,
		State:      string(sess.State),
		CanRecord:  sess.CanRecord(),
		CanAnalyze: sess.CanAnalyze(),
		AudioPath:  sess.AudioPath,
		Transcript: sess.Transcript,
		Language:   sess.Language,
		Analysis:   sess.Analysis,
		Error:      sess.LastError,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
}

func (s *Service) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	handle := &sessionHandle{s: session.New(id, time.Now().UTC())}

	s.mu.Lock()
	s.sessions[id] = handle
	s.mu.Unlock()

	if err := s.journal.AppendSession(r.Context(), id); err != nil {
		s.logger.Warn("failed to journal session", slogError(err))
	}
	s.logger.Info("session created", slog.String("session_id", id))
	writeJSON(w, http.StatusCreated, viewOf(handle.s))
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	handle.mu.Lock()
	view := viewOf(handle.s)
	handle.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.lookup(id); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	entries, err := s.journal.ListSessionEntries(r.Context(), id, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type entryView struct {
		Stage     string          `json:"stage"`
		Outcome   string          `json:"outcome"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{Stage: e.Stage, Outcome: e.Outcome, Payload: e.Payload, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Service) handleRecord(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	ctx, span := s.tracer.Start(r.Context(), "gateway.record")
	defer span.End()

	now := time.Now().UTC()
	if err := handle.s.BeginRecording(now); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	result, err := s.pipeline.Capture(ctx, protocol.CaptureRequest{SessionID: handle.s.ID})
	if err != nil {
		result = protocol.CaptureResult{SessionID: handle.s.ID, Error: err.Error()}
	}

	_ = handle.s.FinishRecording(result.AudioPath, result.Error, time.Now().UTC())
	s.journalStage(ctx, handle.s.ID, journal.StageCapture, result.Error, result)
	s.countStage(ctx, "capture", result.Error)

	if result.Error != "" {
		writeError(w, http.StatusBadGateway, result.Error)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(handle.s))
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()

	ctx, span := s.tracer.Start(r.Context(), "gateway.analyze")
	defer span.End()

	if err := handle.s.BeginAnalysis(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	transcript, err := s.pipeline.Transcribe(ctx, protocol.TranscribeRequest{
		SessionID: handle.s.ID,
		AudioPath: handle.s.AudioPath,
	})
	if err != nil {
		transcript = protocol.Transcript{SessionID: handle.s.ID, Error: err.Error()}
	}
	s.journalStage(ctx, handle.s.ID, journal.StageTranscript, transcript.Error, transcript)
	s.countStage(ctx, "transcribe", transcript.Error)

	// A failed transcription skips the analysis stage entirely.
	if transcript.Error != "" {
		_ = handle.s.FinishAnalysis("", "", "", transcript.Error, time.Now().UTC())
		writeError(w, http.StatusBadGateway, transcript.Error)
		return
	}

	analysis, err := s.pipeline.Analyze(ctx, protocol.AnalysisRequest{
		SessionID:  handle.s.ID,
		Transcript: transcript.Text,
	})
	if err != nil {
		analysis = protocol.AnalysisResult{SessionID: handle.s.ID, Error: err.Error()}
	}
	s.journalStage(ctx, handle.s.ID, journal.StageAnalysis, analysis.Error, analysis)
	s.countStage(ctx, "analyze", analysis.Error)

	if analysis.Error != "" {
		_ = handle.s.FinishAnalysis(transcript.Text, transcript.Language, "", analysis.Error, time.Now().UTC())
		writeError(w, http.StatusBadGateway, analysis.Error)
		return
	}

	_ = handle.s.FinishAnalysis(transcript.Text, transcript.Language, analysis.Content, "", time.Now().UTC())
	writeJSON(w, http.StatusOK, viewOf(handle.s))
}

func (s *Service) lookup(id string) (*sessionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.sessions[id]
	return handle, ok
}

func (s *Service) journalStage(ctx context.Context, sessionID, stage, failure string, payload any) {
	outcome := journal.OutcomeOK
	if failure != "" {
		outcome = journal.OutcomeError
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal journal payload", slogError(err))
		return
	}
	if err := s.journal.AppendEntry(ctx, journal.Entry{
		SessionID: sessionID,
		Stage:     stage,
		Outcome:   outcome,
		Payload:   data,
	}); err != nil {
		s.logger.Warn("failed to journal stage", slogError(err))
	}
}

func (s *Service) countStage(ctx context.Context, stage, failure string) {
	if s.stages == nil {
		return
	}
	outcome := "ok"
	if failure != "" {
		outcome = "error"
	}
	s.stages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
