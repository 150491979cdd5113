package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "notifio", false)

	p.Errorf("LOGNAME is %s", "unset")
	p.Warnf("erased %d outdated records", 3)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "notifio error: LOGNAME is unset" {
		t.Errorf("error line = %q", lines[0])
	}
	if lines[1] != "notifio warning: erased 3 outdated records" {
		t.Errorf("warning line = %q", lines[1])
	}
}

func TestPrinterColorLabels(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, "notifio", true)

	p.Errorf("boom")
	out := buf.String()

	// The message text must survive styling untouched.
	if !strings.HasPrefix(out, "notifio ") || !strings.HasSuffix(out, ": boom\n") {
		t.Errorf("unexpected colored output shape: %q", out)
	}
}
