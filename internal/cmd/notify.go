package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/notifio/internal/config"
	"github.com/Iron-Ham/notifio/internal/fifo"
	"github.com/Iron-Ham/notifio/internal/registry"
	"github.com/Iron-Ham/notifio/internal/ui"
	"github.com/spf13/cobra"
)

// errNoProcesses is the notify-side "nothing to do" failure, reported both
// when the store does not exist and when no record matches.
var errNoProcesses = errors.New("no processes to notify")

var notifyCmd = &cobra.Command{
	Use:   "notify [path]",
	Short: "Notify the process registered for a path",
	Long: `Notify searches the registry for the first live record whose identity
path covers the given path (or the current working directory when no path
is given) and writes one notification byte to its channel.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}
	candidates, err := notifyCandidates(arg)
	if err != nil {
		return err
	}

	store, err := registry.OpenRead(settings.Dir, registry.WithWarnFunc(ui.Warnf))
	if err != nil {
		if errors.Is(err, registry.ErrNoStore) {
			return errNoProcesses
		}
		return err
	}
	defer store.Close()

	record, ok, err := store.FindMatch(candidates)
	if err != nil {
		return err
	}
	if !ok {
		return errNoProcesses
	}

	path := fifo.Path(settings.Dir, record.PID)
	w, err := fifo.OpenWrite(path)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := w.Write([]byte{'1'}); err != nil {
		return fmt.Errorf("writing to %s: %w", path, err)
	}
	return nil
}

// notifyCandidates resolves the target paths to match against registered
// identities: the explicit argument (if any) first, then the working
// directory, each absolute with symlinks expanded.
func notifyCandidates(arg string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}

	var raw []string
	if arg != "" {
		raw = append(raw, arg)
	}
	raw = append(raw, cwd)

	candidates := make([]string, 0, len(raw))
	for _, p := range raw {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		candidates = append(candidates, resolved)
	}
	return candidates, nil
}
