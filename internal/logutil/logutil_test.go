package logutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSlogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"", slog.LevelInfo, true},
		{"info", slog.LevelInfo, true},
		{"DEBUG", slog.LevelDebug, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tc := range cases {
		got, err := parseSlogLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("parseSlogLevel(%q) err = %v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("parseSlogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFileMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor_logs.txt")
	logger, closer, err := newLoggerFromConfig(loggerConfig{File: path})
	if err != nil {
		t.Fatalf("newLoggerFromConfig: %v", err)
	}
	logger.Info("monitor_started", "bot", "@micu_user_bot")
	if closer == nil {
		t.Fatal("expected a closer for the log file")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "monitor_started") {
		t.Fatalf("log file missing mirrored line: %q", data)
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	if _, _, err := newLoggerFromConfig(loggerConfig{Format: "xml"}); err == nil {
		t.Fatal("unknown format should be rejected")
	}
}
