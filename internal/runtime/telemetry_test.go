package runtime

import (
	"log/slog"
	"testing"
)

func TestLogLevelMapping(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" ERROR ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := LogLevel(tc.name); got != tc.want {
			t.Fatalf("LogLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
