// Package voteradar implements the CLI: backtesting, live prediction,
// accuracy reports, and schema migrations.
package voteradar

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voteradar",
	Short: "Vote prediction backtesting for the Riigikogu",
	Long: `Voteradar predicts how members of parliament will vote on proposed
legislation and backtests those predictions against the recorded voting
history under strict temporal isolation.

Backtests are cost-bounded and resumable: every trial is checkpointed,
and an interrupted run picks up exactly where it stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a non-default process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Execute runs the root command and maps errors to exit codes: 1 for fatal
// errors, or whatever code the command chose (2 partial batch failure,
// 3 hard limit).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")

	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
