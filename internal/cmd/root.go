package cmd

import (
	"github.com/Iron-Ham/notifio/internal/config"
	"github.com/spf13/cobra"
)

var rootNoClear bool

var rootCmd = &cobra.Command{
	Use:   "notifio [flags] [--] [command [args...]]",
	Short: "Single-host notification fan-out for terminal processes",
	Long: `Notifio registers the current process in a per-user registry and waits
for notifications on a dedicated channel. With a command, each notification
clears the terminal and re-runs it; without one, each notification is logged.

Other processes deliver notifications with "notifio notify", targeting the
registered process whose working directory covers theirs.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(args, rootNoClear)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(config.Init)

	rootCmd.Flags().BoolVarP(&rootNoClear, "no-clear", "c", false, "do not clear the terminal before each run")
	// The first positional argument starts the supervised command; its
	// own flags must not be parsed as ours.
	rootCmd.Flags().SetInterspersed(false)
}
