package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "perfkit",
	Short:   "Measure latency and throughput of repeated invocations",
	Version: version,
	Long: `perfkit invokes a workload repeatedly, optionally from several workers
and with wait times in between, records every latency and checks the
results against performance requirements such as max, average,
percentiles, throughput and error rate.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return RootCmd.Execute()
}

// newLogger builds the process logger. Diagnostics go to w as JSON; verbose
// enables debug records including one per invocation.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func init() {
	// Add subcommands to root command
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(validateCmd)
}
