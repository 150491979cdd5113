package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int // how many of debug/info/warn/error survive
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{LevelWarn, 2},
		{LevelError, 1},
		{"bogus", 2}, // unknown levels default to WARN
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level)

			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			if got := len(decodeLines(t, &buf)); got != tt.want {
				t.Errorf("level %s: got %d entries, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo).WithComponent("registry")

	l.Info("rewrite complete", "records", 3)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["component"] != "registry" {
		t.Errorf("component = %v, want registry", entries[0]["component"])
	}
	if entries[0]["records"] != float64(3) {
		t.Errorf("records = %v, want 3", entries[0]["records"])
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, LevelInfo)
	_ = parent.With("pid", 42)

	parent.Info("plain")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if _, ok := entries[0]["pid"]; ok {
		t.Error("parent logger inherited child attribute")
	}
}

func TestNopLogger(t *testing.T) {
	// Must not panic and must accept all levels.
	l := NopLogger()
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
}
