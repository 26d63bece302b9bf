package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLoggerCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "contract-analyzer-api", "info")

	logger.Info("run_state", "state", "streaming")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["service"] != "contract-analyzer-api" || line["msg"] != "run_state" || line["state"] != "streaming" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestTextLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "contractctl", "warn")

	logger.Info("hidden")
	logger.Warn("retry_attempt", "section", "risks")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "retry_attempt") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
