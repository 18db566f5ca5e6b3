package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/model"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  log.Level
	}{
		{"debug", "debug", log.DebugLevel},
		{"upper case", "WARN", log.WarnLevel},
		{"warning alias", "warning", log.WarnLevel},
		{"error", "error", log.ErrorLevel},
		{"unknown defaults to info", "verbose", log.InfoLevel},
		{"empty defaults to info", "", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestParseFormatter(t *testing.T) {
	tests := []struct {
		format string
		want   log.Formatter
	}{
		{"json", log.JSONFormatter},
		{"logfmt", log.LogfmtFormatter},
		{"text", log.TextFormatter},
		{"yaml", log.TextFormatter},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := ParseFormatter(tt.format); got != tt.want {
				t.Errorf("ParseFormatter(%q) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestNewHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, model.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("remote update failed", "task", "t1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	for _, want := range []string{"remote update failed", "t1", "teamboard", "{"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
