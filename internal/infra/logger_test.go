package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerTagsServiceAndHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn", "worker")
	logger.Info().Msg("dropped")
	logger.Warn().Str("campaign", "wells").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "crowdfund-worker" {
		t.Fatalf("service = %v, want crowdfund-worker", line["service"])
	}
	if line["message"] != "kept" || line["campaign"] != "wells" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestLoggerDefaultsToInfoOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "", "api")
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at default level: %q", buf.String())
	}
}
