package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/anant5441/medvoice/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralIsNoOp(t *testing.T) {
	ctx := context.Background()
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	store, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.AppendEntry(ctx, Entry{SessionID: "s1", Stage: StageCapture, Outcome: OutcomeOK}); err != nil {
		t.Fatalf("append in ephemeral mode: %v", err)
	}
	entries, err := store.ListSessionEntries(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("list in ephemeral mode: %v", err)
	}
	if entries != nil {
		t.Fatal("ephemeral journal must retain nothing")
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "session"}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sessionID := "session-123"
	if err := store.AppendSession(context.Background(), sessionID); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := store.AppendEntry(context.Background(), Entry{
		SessionID: sessionID,
		Stage:     StageTranscript,
		Outcome:   OutcomeOK,
		Payload:   []byte(`{"text":"my head hurts","language":"en"}`),
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	entries, err := store.ListSessionEntries(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Stage != StageTranscript || entries[0].Outcome != OutcomeOK {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	store.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := store.AppendSession(context.Background(), "old-session"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := store.AppendEntry(context.Background(), Entry{SessionID: "old-session", Stage: StageCapture, Outcome: OutcomeOK}); err != nil {
		t.Fatalf("append entry: %v", err)
	}

	store.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := store.AppendSession(context.Background(), "new-session"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := store.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := store.ListSessionEntries(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("expected old session pruned")
	}
}
