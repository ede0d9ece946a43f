package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bioswatch/internal/app"
)

var (
	watchSchedule string
	runOnStart    bool
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run checks on a schedule until interrupted",
		Long: `Run as a long-lived daemon. The schedule accepts cron expressions
("0 */6 * * *", "@daily", "@every 6h"), Go durations ("55m") and HH:MM
intervals ("06:00").

The config file is watched; valid edits apply without a restart.
Supports systemd Type=notify units.

Examples:
  bioswatch watch -c /etc/bioswatch.yaml
  bioswatch watch --schedule "@every 6h" --run-on-start`,
		RunE: runWatch,
	}
	cmd.Flags().StringVar(&watchSchedule, "schedule", "", "Schedule (overrides config schedule / SCHEDULE)")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run one check immediately")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Watch(ctx, app.WatchOptions{Schedule: watchSchedule, RunOnStart: runOnStart})
}

