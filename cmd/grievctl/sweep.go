package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/grievo/internal/app"
)

func newSweepCmd() *cobra.Command {
	var nowFlag string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseNow(nowFlag)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Scheduler.Sweep(cmd.Context(), now)
				if err != nil {
					return err
				}
				if result.LockHeld {
					fmt.Fprintln(cmd.OutOrStdout(), "Another instance holds the sweep lock; nothing done.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Escalated %d of %d stale complaints (%d skipped, %d failed)\n",
					result.Escalated, result.Candidates, result.Skipped, result.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "evaluate staleness as of this RFC3339 time (default: current time)")
	return cmd
}

func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: expected RFC3339", value)
	}
	return t, nil
}
