package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Capture.Mode != "mock" || cfg.STT.Mode != "mock" || cfg.Analysis.Mode != "mock" {
		t.Fatalf("expected mock defaults for all stages")
	}
	if cfg.Journal.RetentionMode != "ephemeral" {
		t.Fatalf("expected ephemeral journal by default, got %q", cfg.Journal.RetentionMode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEDVOICE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("MEDVOICE_BUS_USERNAME", "alice")
	t.Setenv("MEDVOICE_BUS_PASSWORD", "secret")
	t.Setenv("MEDVOICE_BUS_TLS_INSECURE", "true")
	t.Setenv("MEDVOICE_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("MEDVOICE_CAPTURE_MAX_WAIT_MS", "10000")
	t.Setenv("MEDVOICE_CAPTURE_PHRASE_LIMIT_MS", "15000")
	t.Setenv("MEDVOICE_CAPTURE_ONSET_THRESHOLD_DBFS", "-35.5")
	t.Setenv("MEDVOICE_STT_MODE", "exec")
	t.Setenv("MEDVOICE_STT_COMMAND", "whisper-json --model medium")
	t.Setenv("MEDVOICE_ANALYSIS_MODE", "gemini")
	t.Setenv("MEDVOICE_ANALYSIS_MODEL", "gemini-2.0-flash")
	t.Setenv("MEDVOICE_JOURNAL_PATH", "./tmp.db")
	t.Setenv("MEDVOICE_JOURNAL_RETENTION_MODE", "persistent")
	t.Setenv("MEDVOICE_JOURNAL_RETENTION_DAYS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Capture.MaxWaitMS != 10000 || cfg.Capture.PhraseLimitMS != 15000 {
		t.Fatalf("expected capture window overrides")
	}
	if cfg.Capture.OnsetThresholdDBFS != -35.5 {
		t.Fatalf("expected onset threshold override, got %v", cfg.Capture.OnsetThresholdDBFS)
	}
	if cfg.STT.Mode != "exec" || cfg.STT.Command != "whisper-json --model medium" {
		t.Fatalf("expected stt exec override")
	}
	if cfg.Analysis.Mode != "gemini" || cfg.Analysis.Model != "gemini-2.0-flash" {
		t.Fatalf("expected analysis override")
	}
	if cfg.Journal.Path != "./tmp.db" {
		t.Fatalf("expected journal path override")
	}
	if cfg.Journal.RetentionMode != "persistent" {
		t.Fatalf("expected journal retention mode override")
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Fatalf("expected journal retention days override")
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("MEDVOICE_STT_MODE", "grpc")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown stt mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("MEDVOICE_CAPTURE_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when capture.command missing for mode=exec")
	}
}
