package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "auditdiff",
	Short: "Summarize and diff host-audit probe failures",
	Long: "Auditdiff turns raw probe failure events from a host audit run into a\n" +
		"summary snapshot, and diffs the snapshots of two runs into a classified\n" +
		"change report.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// exitCodeError carries a specific process exit code out of a subcommand.
// The diff exit contract: 0 no changes, 2 changes found, 1 fatal error.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
