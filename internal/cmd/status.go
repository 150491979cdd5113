package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/notifio/internal/config"
	"github.com/Iron-Ham/notifio/internal/registry"
	"github.com/Iron-Ham/notifio/internal/ui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the processes currently registered for this user",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "re-render whenever the registry changes")
	rootCmd.AddCommand(statusCmd)
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true)
	statusStaleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	render := func() error {
		return renderStatus(os.Stdout, settings)
	}

	if !statusWatch {
		return render()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(settings.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", settings.Dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := render(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Channel churn and store rewrites both land here;
			// re-rendering on any directory event keeps this simple.
			fmt.Fprintln(os.Stdout)
			if err := render(); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ui.Warnf("watching registry: %v", werr)
		}
	}
}

// renderStatus prints one row per parseable record. Stale rows are kept
// visible but marked: they describe processes assumed dead that no rewrite
// has evicted yet.
func renderStatus(w io.Writer, settings *config.Settings) error {
	store, err := registry.OpenRead(settings.Dir, registry.WithWarnFunc(ui.Warnf))
	if err != nil {
		if errors.Is(err, registry.ErrNoStore) {
			fmt.Fprintln(w, "no registered processes")
			return nil
		}
		return err
	}
	defer store.Close()

	records, err := store.Snapshot()
	if err != nil {
		return err
	}
	writeStatusTable(w, records, time.Now(), settings.HeartbeatInterval)
	return nil
}

func writeStatusTable(w io.Writer, records []registry.Record, now time.Time, interval time.Duration) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no registered processes")
		return
	}

	fmt.Fprintln(w, statusHeaderStyle.Render(fmt.Sprintf("%-10s %-8s %s", "PID", "AGE", "IDENTITY")))
	for _, r := range records {
		line := fmt.Sprintf("%-10d %-8s %s", r.PID, formatAge(r.Age(now)), r.Identity)
		if r.Stale(now, interval) {
			line = statusStaleStyle.Render(line + "  (stale)")
		}
		fmt.Fprintln(w, line)
	}
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	return age.Truncate(time.Second).String()
}
