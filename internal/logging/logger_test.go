package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("watch started", map[string]string{"root": "/tmp/watch-me"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "watch started" {
		t.Fatalf("expected message, got %q", entry.Message)
	}
	if entry.Fields["root"] != "/tmp/watch-me" {
		t.Fatalf("expected root field, got %v", entry.Fields)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Debug("debug", nil)
	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerComponentFields(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard).Component("watcher")

	logger.Info("event", map[string]string{"path": "a.html"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields[ComponentField] != "watcher" {
		t.Fatalf("expected component field, got %v", entries[0].Fields)
	}
	if entries[0].Fields["path"] != "a.html" {
		t.Fatalf("expected path field, got %v", entries[0].Fields)
	}
}

func TestLoggerOutputFormat(t *testing.T) {
	var output bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelInfo, &output)

	logger.Warn("reload failed", map[string]string{"error": "boom", "attempt": "1"})

	line := output.String()
	if !strings.Contains(line, `level=warning msg="reload failed" attempt="1" error="boom"`) {
		t.Fatalf("unexpected output: %q", line)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.With(map[string]string{"a": "b"}) != nil {
		t.Fatal("expected nil logger from With")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for raw, expected := range cases {
		level, ok := ParseLevel(raw)
		if !ok || level != expected {
			t.Fatalf("ParseLevel(%q) = %q, %v", raw, level, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatal("expected unknown level to fail")
	}
}
