package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/format"
	"github.com/ThomasRohde/Agent0-sub003/parser"
)

func newFmtCmd() *cobra.Command {
	var (
		write    bool
		showDiff bool
	)
	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Format an A0 source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return &exitCodeError{code: 1, err: fmt.Errorf("reading source file: %w", err)}
			}
			prog, perr := parser.Parse(path, string(src))
			if perr != nil {
				fmt.Fprintln(os.Stderr, diagnostics.Pretty([]*diagnostics.Diagnostic{perr}))
				return &exitCodeError{code: codeToExit(perr.Code), err: fmt.Errorf("parse failed")}
			}
			formatted := format.Format(prog)

			if showDiff {
				diff := difflib.UnifiedDiff{
					A:        difflib.SplitLines(string(src)),
					B:        difflib.SplitLines(formatted),
					FromFile: path,
					ToFile:   path + " (formatted)",
					Context:  3,
				}
				text, _ := difflib.GetUnifiedDiffString(diff)
				if strings.TrimSpace(text) == "" {
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			if write {
				if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
					return &exitCodeError{code: 1, err: fmt.Errorf("writing formatted source: %w", err)}
				}
				return nil
			}
			fmt.Print(formatted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the formatted output back to the file")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "print a unified diff instead of writing")
	return cmd
}
