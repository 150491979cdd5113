package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Iron-Ham/notifio/internal/config"
	"github.com/Iron-Ham/notifio/internal/dispatch"
	"github.com/Iron-Ham/notifio/internal/fifo"
	"github.com/Iron-Ham/notifio/internal/heartbeat"
	"github.com/Iron-Ham/notifio/internal/listener"
	"github.com/Iron-Ham/notifio/internal/logging"
	"github.com/Iron-Ham/notifio/internal/registry"
	"github.com/Iron-Ham/notifio/internal/ui"
	"github.com/spf13/cobra"
)

var waitNoClear bool

var waitCmd = &cobra.Command{
	Use:   "wait [flags] [--] [command [args...]]",
	Short: "Register and wait for notifications (the default command)",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(args, waitNoClear)
	},
}

func init() {
	waitCmd.Flags().BoolVarP(&waitNoClear, "no-clear", "c", false, "do not clear the terminal before each run")
	waitCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(waitCmd)
}

// runWait is the process's main path: register, heartbeat, listen,
// dispatch, deregister. It returns nil on user interruption so the process
// exits zero.
func runWait(args []string, noClear bool) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, settings.LogLevel)

	runner := buildRunner(args, noClear, logger)

	identity, err := currentIdentity()
	if err != nil {
		return err
	}

	store, err := registry.Open(settings.Dir,
		registry.WithInterval(settings.HeartbeatInterval),
		registry.WithLogger(logger),
		registry.WithWarnFunc(ui.Warnf),
	)
	if err != nil {
		return err
	}
	defer store.Close()

	pid := os.Getpid()
	allowed, err := store.Rewrite(pid, identity, true)
	if err != nil {
		return err
	}

	// Orphaned channels are pruned at startup only: a heartbeat-time
	// prune could race a peer's channel creation against its first use.
	if _, err := fifo.Prune(settings.Dir, allowed); err != nil {
		ui.Warnf("pruning orphaned channels: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	task := heartbeat.New(store, pid, identity, settings.HeartbeatInterval, logger)
	task.Start(ctx)
	shutdown := func() {
		stop()
		task.Wait()
	}

	ch, err := fifo.OpenRead(fifo.Path(settings.Dir, pid))
	if err != nil {
		shutdown()
		return err
	}
	defer ch.Close()

	err = listener.Loop(ctx, ch, runner, settings.PollInterval, settings.ReadBuffer, logger)
	shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildRunner selects the dispatcher variant: command supervision when a
// command was given, logging otherwise. The command runner clears the
// screen immediately, before any registry I/O.
func buildRunner(args []string, noClear bool, logger *logging.Logger) dispatch.Runner {
	if len(args) == 0 {
		return dispatch.NewLogRunner(os.Stdout, ui.ProgName())
	}

	r := dispatch.NewCommandRunner(args, !noClear,
		dispatch.WithWarnFunc(ui.Warnf),
		dispatch.WithLogger(logger),
	)
	r.EarlyClear()
	return r
}

// currentIdentity is the tag stored in this process's presence record:
// the working directory with symlinks resolved, so notify-side path
// matching is stable.
func currentIdentity() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(cwd)
	if err != nil {
		// The directory may have been removed underneath us; the
		// unresolved path is still a usable identity.
		return cwd, nil
	}
	return resolved, nil
}
