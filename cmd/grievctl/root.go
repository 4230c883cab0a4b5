package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/timmy/grievo/internal/app"
	"github.com/timmy/grievo/internal/config"
	"github.com/timmy/grievo/internal/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grievctl",
	Short: "Operate the grievance service from the command line",
	Long: `grievctl runs maintenance tasks against the same database and embedding
provider the API server uses: one-off escalation sweeps, seed checks, and
admin provisioning.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDefaultLogger(logger.New(&logger.Config{
			Level:       "info",
			Format:      "text",
			Output:      cmd.ErrOrStderr(),
			ServiceName: "grievctl",
		}))
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/config.yaml)")

	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newSeedsCmd())
	rootCmd.AddCommand(newCreateAdminCmd())
}

// withApp loads configuration, builds the application and closes it after fn.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
