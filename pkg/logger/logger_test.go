package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_WritesLeveledPrefixes(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf)

	Info("hello %s", "world")
	Warn("careful")
	Error("boom %d", 42)
	Debug("detail")

	out := buf.String()
	for _, want := range []string{"[INFO] hello world", "[WARN] careful", "[ERROR] boom 42", "[DEBUG] detail"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got %q", want, out)
		}
	}
}

func TestLogger_NoopBeforeInit(t *testing.T) {
	mu.Lock()
	target = nil
	mu.Unlock()

	Info("should not panic")
}
