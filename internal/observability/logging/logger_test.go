package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONLoggerCarriesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "notepeel", "warn")

	logger.Info("hidden")
	logger.Warn("session_ended", "reason", "logout")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "session_ended" || entry["service"] != "notepeel" || entry["reason"] != "logout" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" {
		t.Fatalf("expected debug")
	}
	if parseLevel("bogus").String() != "INFO" {
		t.Fatalf("expected info fallback")
	}
}
