package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"invalid defaults to info", "invalid", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %s", buf.String())
	}

	log.Warn("kept")
	entry := decode(t, &buf)
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want %q", entry["level"], "warning")
	}
}

func TestLogger_WithModule(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("nginx").Info("test message")

	entry := decode(t, &buf)
	if module, ok := entry["module"].(string); !ok || module != "nginx" {
		t.Errorf("WithModule() module = %v, want %q", entry["module"], "nginx")
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithRunID("run-123").Info("test message")

	entry := decode(t, &buf)
	if runID, ok := entry["run_id"].(string); !ok || runID != "run-123" {
		t.Errorf("WithRunID() run_id = %v, want %q", entry["run_id"], "run-123")
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	testErr := &testError{msg: "test error message"}
	log.WithError(testErr).Error("operation failed")

	entry := decode(t, &buf)
	if errField, ok := entry["error"].(string); !ok || errField != "test error message" {
		t.Errorf("WithError() error = %v, want %q", entry["error"], "test error message")
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithFields(map[string]any{"step": "Installing nginx", "index": 4}).Info("step started")

	entry := decode(t, &buf)
	if entry["step"] != "Installing nginx" {
		t.Errorf("step = %v", entry["step"])
	}
	if entry["index"] != float64(4) {
		t.Errorf("index = %v", entry["index"])
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Infof("installed %d packages", 3)

	entry := decode(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("JSON log missing required field %q", field)
		}
	}
	if entry["message"] != "installed 3 packages" {
		t.Errorf("message = %v, want %q", entry["message"], "installed 3 packages")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want %q", entry["level"], "info")
	}
}

func TestTeeHandler(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	if !tee.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false, want true when any handler accepts debug")
	}

	log := slog.New(tee).With("phase", "setup")
	log.Info("only debug handler")
	log.Error("both handlers")

	if got := bytes.Count(debugBuf.Bytes(), []byte("\n")); got != 2 {
		t.Errorf("debug handler received %d records, want 2", got)
	}
	if got := bytes.Count(errorBuf.Bytes(), []byte("\n")); got != 1 {
		t.Errorf("error handler received %d records, want 1", got)
	}
	if !bytes.Contains(errorBuf.Bytes(), []byte(`"phase":"setup"`)) {
		t.Errorf("WithAttrs not propagated: %s", errorBuf.String())
	}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v (%s)", err, buf.String())
	}
	return entry
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
