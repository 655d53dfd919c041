package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerPrefixAndLevel(t *testing.T) {
	t.Setenv("LEAKER_LOG_LEVEL", "warn")
	t.Setenv("LEAKER_LOG_PREFIX", "test ")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, false)
	lg.Info("hidden")
	lg.Warn("shown", "addr", "0x1000")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "test") || !strings.Contains(out, "shown") || !strings.Contains(out, "addr=0x1000") {
		t.Errorf("output = %q", out)
	}
	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDebugOverridesEnvironment(t *testing.T) {
	t.Setenv("LEAKER_LOG_LEVEL", "error")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, true)
	lg.Debug("measure stopped")
	if !strings.Contains(buf.String(), "measure stopped") {
		t.Errorf("debug message missing: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "logger_test.go") {
		t.Errorf("debug record has no caller: %q", buf.String())
	}
}
