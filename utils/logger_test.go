package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.raw); got != tt.want {
			t.Errorf("ParseLevel(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestLoggerDropsMessagesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LevelWarn)

	l.Debug("[test] debug line")
	l.Info("[test] info line")
	l.Warn("[test] warn line")
	l.Error("[test] error line")

	out := buf.String()
	for _, dropped := range []string{"debug line", "info line"} {
		if strings.Contains(out, dropped) {
			t.Errorf("output contains %q at warn level", dropped)
		}
	}
	for _, kept := range []string{"warn line", "error line"} {
		if !strings.Contains(out, kept) {
			t.Errorf("output missing %q", kept)
		}
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("[test] now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("SetLevel(LevelDebug) did not enable debug output")
	}
}
