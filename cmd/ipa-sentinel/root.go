package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ipafleet/ipa-sentinel/internal/exitcode"
)

var (
	flagConfig  string
	flagForce   bool
	flagDryRun  bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "ipa-sentinel",
	Short:        "Fleet IPA build sentinel",
	Long:         "Detects device roster and upstream release changes, then rebuilds, signs, and delivers IPA artifacts for the fleet.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to the task configuration file (overrides CONFIG_TOML)")
	rootCmd.PersistentFlags().BoolVar(&flagForce, "force", false, "Force a rebuild of every task")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Plan and report without building or notifying")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", exitcode.Describe(exitErr.code), exitErr.err)
			return exitErr.code
		}
		return exitcode.ConfigError
	}
	return exitcode.OK
}
