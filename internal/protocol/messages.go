package protocol

import "time"

// CaptureRequest asks the capture service to record one utterance.
type CaptureRequest struct {
	SessionID     string `json:"session_id"`
	MaxWaitMS     int    `json:"max_wait_ms,omitempty"`
	PhraseLimitMS int    `json:"phrase_limit_ms,omitempty"`
}

// CaptureResult reports the stored recording, or a stage error.
type CaptureResult struct {
	SessionID     string    `json:"session_id"`
	AudioPath     string    `json:"audio_path,omitempty"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
	SpeechOnsetMS int64     `json:"speech_onset_ms,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TranscribeRequest asks the STT service to transcribe a stored recording.
type TranscribeRequest struct {
	SessionID string `json:"session_id"`
	AudioPath string `json:"audio_path"`
}

// Transcript is the STT reply.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text,omitempty"`
	Language   string    `json:"language,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AnalysisRequest asks the analysis service to summarize a transcript.
type AnalysisRequest struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

// AnalysisResult carries the generated analysis verbatim.
type AnalysisResult struct {
	SessionID string    `json:"session_id"`
	Content   string    `json:"content,omitempty"`
	Model     string    `json:"model,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectCaptureRequest  = "capture.request"
	SubjectTranscribe      = "stt.request"
	SubjectAnalysisRequest = "analysis.request"
)
