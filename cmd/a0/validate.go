package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/parser"
	"github.com/ThomasRohde/Agent0-sub003/validator"
)

func newValidateCmd() *cobra.Command {
	var sandboxRoot string
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse and validate an A0 program without running it",
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
			reg := buildRegistry(sandboxRoot)
			diags := validator.Validate(prog, toolInfoSet(reg))
			if len(diags) > 0 {
				fmt.Fprintln(os.Stderr, diagnostics.Pretty(diags))
				return &exitCodeError{code: codeToExit(diags[0].Code), err: fmt.Errorf("validation failed")}
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&sandboxRoot, "sandbox-root", ".", "root directory fs.read/fs.write are confined to")
	return cmd
}
