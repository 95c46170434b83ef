package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "info level hides debug", debug: false, wantDebug: false},
		{name: "debug level shows debug", debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(ConsoleLoggerParams{Debug: tt.debug, Output: &buf, NoTimestamp: true})

			l.Debug("chunk details", "chunk", 1)
			l.Info("[Stream] Building graph", "graph_id", "g1")

			out := buf.String()
			if got := strings.Contains(out, "chunk details"); got != tt.wantDebug {
				t.Fatalf("debug line present = %v, want %v; output:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "[Stream] Building graph") || !strings.Contains(out, "graph_id=g1") {
				t.Fatalf("info line missing; output:\n%s", out)
			}
		})
	}
}

func TestConsoleLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf, Prefix: "cognify-cli", NoTimestamp: true})
	l.Warn("lease lost")

	if !strings.Contains(buf.String(), "cognify-cli") {
		t.Fatalf("prefix missing; output: %q", buf.String())
	}
}
