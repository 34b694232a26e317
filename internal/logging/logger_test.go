package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleHandlerLineShape(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	WithComponent(logger, "daemon").Info("request handled",
		String(FieldCommand, "ping"),
		Int("bytes", 42),
	)

	line := strings.TrimSuffix(buf.String(), "\n")
	if strings.Contains(line, "\n") {
		t.Fatalf("expected a single line, got %q", buf.String())
	}
	if !strings.Contains(line, " INFO ") {
		t.Fatalf("expected level label in %q", line)
	}
	if !strings.Contains(line, "daemon: request handled") {
		t.Fatalf("expected component prefix in %q", line)
	}
	if !strings.Contains(line, "command=ping") || !strings.Contains(line, "bytes=42") {
		t.Fatalf("expected key=value attrs in %q", line)
	}
	if strings.Contains(line, FieldComponent+"=") {
		t.Fatalf("component should be hoisted out of the attr list: %q", line)
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.WithGroup("request").Info("accepted",
		String("id", "abc"),
		Group("peer", String("addr", "127.0.0.1:9000")),
	)

	line := buf.String()
	if !strings.Contains(line, "request.id=abc") {
		t.Fatalf("expected dotted group key in %q", line)
	}
	if !strings.Contains(line, "request.peer.addr=127.0.0.1:9000") {
		t.Fatalf("expected nested group key in %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Warn("oops", String("detail", "two words"), Error(errors.New("boom")))

	line := buf.String()
	if !strings.Contains(line, `detail="two words"`) {
		t.Fatalf("expected quoted value in %q", line)
	}
	if !strings.Contains(line, "error=boom") {
		t.Fatalf("expected error attr in %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar, false))

	logger.Info("hello", String("k", "v"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Fatalf("expected msg field, got %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"].(string); !ok {
		t.Fatalf("expected string ts field, got %v", entry["ts"])
	}
	if entry["k"] != "v" {
		t.Fatalf("expected attr passthrough, got %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "socks.log")
	logger, err := New(Options{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("persisted")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted") {
		t.Fatalf("expected record in log file, got %q", data)
	}
}

func TestWithComponentNilLogger(t *testing.T) {
	logger := WithComponent(nil, "client")
	// Must be safe to use and stay silent.
	logger.Info("ignored")
	if logger.Enabled(nil, slog.LevelError) {
		t.Fatal("nop logger should report disabled")
	}
}
