package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Console: true, Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("puzzle_start", zap.String("channel", "C1"), zap.Int("rating", 1500))
	_ = logger.Sync()

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("not json: %q (%v)", buf.String(), err)
	}
	if line["msg"] != "puzzle_start" || line["channel"] != "C1" || line["level"] != "info" {
		t.Fatalf("unexpected entry %v", line)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Console: true, Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	logger, err := New(Options{Format: "legacy", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("written")
	_ = logger.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "written") || !strings.Contains(string(data), " | ") {
		t.Fatalf("file = %q", data)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_CALLER", "")
	opts := OptionsFromEnv()
	if opts.Level != "info" || opts.Format != "json" || opts.Console {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.File != filepath.Join("logs", "puzzle-bot.log") {
		t.Fatalf("file = %s", opts.File)
	}
}
