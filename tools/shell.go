package tools

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

var shellExecSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"cmd"},
	"additionalProperties": false,
	"properties": map[string]any{
		"cmd": map[string]any{"type": "string"},
	},
}

// ShellExec builds the sh.exec tool (mode effect), grounded on the
// teacher's `exec.CommandContext(ctx, "sh", "-c", cmdStr)` pattern
// (pkgs/execution.ExecutionContext.executeShellInterpreter) so the
// evaluator's budget-derived context.Context governs cancellation the
// same way.
func ShellExec() plugin.ToolDef {
	return plugin.ToolDef{
		Name:       "sh.exec",
		Mode:       plugin.ModeEffect,
		Capability: "sh.exec",
		Schema:     shellExecSchema,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			cmdV, _ := args.Get("cmd")
			cmd := exec.CommandContext(ctx, "sh", "-c", cmdV.AsString())
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			exitCode := 0
			if err := cmd.Run(); err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return value.Value{}, err
				}
			}
			return value.NewRecord([]value.Entry{
				{Key: "exitCode", Value: value.NewNumber(float64(exitCode))},
				{Key: "stdout", Value: value.NewString(stdout.String())},
				{Key: "stderr", Value: value.NewString(stderr.String())},
			}), nil
		},
	}
}
