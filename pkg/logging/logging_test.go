package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupRejectsBadOptions(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatal("Setup: expected error for unknown level")
	}
	if err := Setup(Options{Format: "xml"}); err == nil {
		t.Fatal("Setup: expected error for unknown format")
	}
}

func TestForTagsComponent(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if err := Setup(Options{Level: "info", Format: "json", Output: &buf,
		Attrs: []slog.Attr{slog.String("service", "peermatch")}}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	For("gateway").Info("user connected", "user", "alice")

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("Unmarshal %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"component": "gateway", "user": "alice", "service": "peermatch", "msg": "user connected"} {
		if rec[k] != want {
			t.Errorf("record[%q] = %v, want %q", k, rec[k], want)
		}
	}
}
