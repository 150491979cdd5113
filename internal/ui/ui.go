// Package ui renders notifio's user-facing diagnostics.
//
// Diagnostic lines follow the form "<prog> error: ..." / "<prog> warning: ...",
// written to stderr with the severity label colored via lipgloss. Coloring is
// suppressed when NO_COLOR is set or when stderr is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Printer writes formatted diagnostic lines to a single output stream.
type Printer struct {
	out   io.Writer
	prog  string
	color bool
}

// NewPrinter creates a Printer writing to out. When color is false the
// severity labels are emitted as plain text.
func NewPrinter(out io.Writer, prog string, color bool) *Printer {
	return &Printer{out: out, prog: prog, color: color}
}

// Errorf writes a "<prog> error: ..." line.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.label("error", errorStyle), format, args...)
}

// Warnf writes a "<prog> warning: ..." line.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.label("warning", warningStyle), format, args...)
}

func (p *Printer) label(text string, style lipgloss.Style) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

func (p *Printer) line(label, format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s: %s\n", p.prog, label, fmt.Sprintf(format, args...))
}

// stderr is the process-wide default printer.
var stderr = NewPrinter(os.Stderr, ProgName(), colorEnabled())

// Errorf writes an error line to stderr via the default printer.
func Errorf(format string, args ...any) {
	stderr.Errorf(format, args...)
}

// Warnf writes a warning line to stderr via the default printer.
func Warnf(format string, args ...any) {
	stderr.Warnf(format, args...)
}

// ProgName returns the invoked program name, as used in diagnostic and
// banner lines.
func ProgName() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return "notifio"
	}
	return filepath.Base(os.Args[0])
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}
