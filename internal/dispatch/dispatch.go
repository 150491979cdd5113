// Package dispatch defines the reaction to a received notification.
//
// A [Runner] is invoked once per notification byte by the listener. There
// are exactly two implementations: [CommandRunner] re-runs a supervised
// command (clearing the terminal first), and [LogRunner] logs receipt.
package dispatch

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Iron-Ham/notifio/internal/logging"
)

// ClearSequence clears the screen and scrollback and homes the cursor.
const ClearSequence = "\x1b[3J\x1b[H\x1b[2J"

// Runner reacts to notifications. Startup is called once before the
// listener starts reading; Run is called once per received notification.
// Runners are driven from a single goroutine and need not be
// concurrency-safe.
type Runner interface {
	Startup()
	Run()
}

// CommandRunner supervises an external command: each notification clears
// the terminal, terminates the previous child if one is still running, and
// launches a fresh one.
//
// Child lifecycle is best-effort and non-blocking: the runner never waits
// on a child, and termination of the previous child is a SIGTERM without
// reaping.
type CommandRunner struct {
	argv         []string
	clearEnabled bool
	cleared      bool
	out          io.Writer
	warnf        func(format string, args ...any)
	logger       *logging.Logger

	child *exec.Cmd
	spawn func(argv []string) (*exec.Cmd, error)
}

// CommandOption configures a CommandRunner.
type CommandOption func(*CommandRunner)

// WithOutput redirects the terminal-clear sequence. Defaults to stdout.
func WithOutput(w io.Writer) CommandOption {
	return func(r *CommandRunner) { r.out = w }
}

// WithWarnFunc sets the sink for child-spawn warnings.
func WithWarnFunc(f func(format string, args ...any)) CommandOption {
	return func(r *CommandRunner) { r.warnf = f }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) CommandOption {
	return func(r *CommandRunner) { r.logger = l }
}

// NewCommandRunner creates a runner supervising argv. The first element is
// the command, the rest its arguments. When clearEnabled is false the
// terminal is never cleared.
func NewCommandRunner(argv []string, clearEnabled bool, opts ...CommandOption) *CommandRunner {
	r := &CommandRunner{
		argv:         argv,
		clearEnabled: clearEnabled,
		out:          os.Stdout,
		warnf:        func(string, ...any) {},
		logger:       logging.NopLogger(),
		spawn:        spawnChild,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("dispatch")
	return r
}

// EarlyClear blanks the screen before any registry interaction, so slow
// store I/O does not delay clearing at startup.
func (r *CommandRunner) EarlyClear() {
	r.clear()
	r.cleared = true
}

// Startup launches the supervised command once immediately, before any
// notification arrives.
func (r *CommandRunner) Startup() { r.Run() }

// Run clears the terminal (unless already cleared since the last start),
// replaces any running child, and marks the screen dirty for the next
// cycle.
func (r *CommandRunner) Run() {
	if !r.cleared {
		r.clear()
	}
	r.startChild()
	r.cleared = false
}

func (r *CommandRunner) clear() {
	if !r.clearEnabled {
		return
	}
	fmt.Fprint(r.out, ClearSequence)
}

func (r *CommandRunner) startChild() {
	if r.child != nil && r.child.Process != nil {
		// Best-effort terminate, no wait for exit.
		_ = r.child.Process.Signal(syscall.SIGTERM)
	}

	child, err := r.spawn(r.argv)
	if err != nil {
		r.warnf("starting %s: %v", r.argv[0], err)
		r.logger.Error("child spawn failed", "command", r.argv[0], "error", err)
		r.child = nil
		return
	}
	r.child = child
	r.logger.Debug("child started", "command", r.argv[0], "pid", child.Process.Pid)
}

// spawnChild starts argv attached to this process's terminal. The child is
// fire-and-forget: it is started but never waited on.
func spawnChild(argv []string) (*exec.Cmd, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// LogRunner logs notification receipt instead of running a command.
type LogRunner struct {
	out  io.Writer
	prog string
}

// NewLogRunner creates a runner that writes one line per notification to
// out, labelled with the program name.
func NewLogRunner(out io.Writer, prog string) *LogRunner {
	return &LogRunner{out: out, prog: prog}
}

// Startup emits the waiting banner.
func (r *LogRunner) Startup() {
	fmt.Fprintf(r.out, "[%s] waiting for notifications\n", r.prog)
}

// Run emits one timestamped receipt line.
func (r *LogRunner) Run() {
	fmt.Fprintf(r.out, "[%s] received notification\n", time.Now().Format("2006-01-02 15:04:05"))
}
