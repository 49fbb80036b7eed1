// Command a0 is the reference host for the A0 language: it reads a
// source file, resolves a policy, and runs, formats, or validates the
// program, mapping the outcome to the exit code contract. Grounded on
// the teacher's cli/main.go cobra root command with RunE subcommands,
// trimmed of the teacher's secret-scrubbing stream lockdown (A0 has no
// secrets model) but keeping its pattern of a single root command
// parsing global flags before dispatch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFromError(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "a0",
		Short:         "Run, format, and validate A0 programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newFmtCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// exitCodeError carries the exit code the CLI misuse/run outcome maps
// to (spec.md §6's Exit Code Contract), letting main's top-level
// os.Exit stay in one place.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func exitFromError(err error) int {
	if ec, ok := err.(*exitCodeError); ok {
		return ec.code
	}
	return 1
}

func usageError(format string, args ...any) error {
	return &exitCodeError{code: 1, err: fmt.Errorf(format, args...)}
}
