package session

import (
	"fmt"
	"time"
)

// State is the explicit lifecycle value for one triage session. It replaces
// ambient boolean flags: every handler takes the current state and returns
// the next one.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateProcessed State = "processed"
)

// Session tracks one patient interaction.
type Session struct {
	ID         string
	State      State
	AudioPath  string
	Transcript string
	Language   string
	Analysis   string
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanRecord reports whether a new capture may begin.
func (s *Session) CanRecord() bool {
	return s.State != StateRecording
}

// CanAnalyze reports whether the analyze action is permitted: never while
// recording, never twice for the same recording, and only once a recording
// exists.
func (s *Session) CanAnalyze() bool {
	return s.State == StateIdle && s.AudioPath != ""
}

// BeginRecording moves the session into the recording state. Starting a new
// capture always clears the processed flag, matching the record button
// resetting the analysis gate.
func (s *Session) BeginRecording(now time.Time) error {
	if !s.CanRecord() {
		return fmt.Errorf("cannot record while in state %q", s.State)
	}
	s.State = StateRecording
	s.LastError = ""
	s.UpdatedAt = now
	return nil
}

// FinishRecording returns the session to idle. On success the new recording
// replaces the previous one; on failure the previous recording is untouched.
func (s *Session) FinishRecording(audioPath string, failure string, now time.Time) error {
	if s.State != StateRecording {
		return fmt.Errorf("cannot finish recording in state %q", s.State)
	}
	s.State = StateIdle
	s.UpdatedAt = now
	if failure != "" {
		s.LastError = failure
		return nil
	}
	s.AudioPath = audioPath
	s.Transcript = ""
	s.Language = ""
	s.Analysis = ""
	return nil
}

// BeginAnalysis validates the analyze action without changing state; the
// session stays idle until the outcome is known so a failure needs no
// rollback.
func (s *Session) BeginAnalysis() error {
	if s.State == StateRecording {
		return fmt.Errorf("cannot analyze while recording")
	}
	if s.State == StateProcessed {
		return fmt.Errorf("recording already analyzed; record again first")
	}
	if s.AudioPath == "" {
		return fmt.Errorf("no recording to analyze")
	}
	return nil
}

// FinishAnalysis records the outcome of the transcribe+analyze sequence.
// Only a full success reaches the processed state.
func (s *Session) FinishAnalysis(transcript, language, analysis, failure string, now time.Time) error {
	if s.State != StateIdle {
		return fmt.Errorf("cannot finish analysis in state %q", s.State)
	}
	s.UpdatedAt = now
	if failure != "" {
		s.LastError = failure
		s.Transcript = transcript
		s.Language = language
		return nil
	}
	s.Transcript = transcript
	s.Language = language
	s.Analysis = analysis
	s.LastError = ""
	s.State = StateProcessed
	return nil
}
