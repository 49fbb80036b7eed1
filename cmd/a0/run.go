package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/evaluator"
	"github.com/ThomasRohde/Agent0-sub003/parser"
	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/policy"
	"github.com/ThomasRohde/Agent0-sub003/stdlib"
	"github.com/ThomasRohde/Agent0-sub003/tools"
	"github.com/ThomasRohde/Agent0-sub003/trace"
	"github.com/ThomasRohde/Agent0-sub003/validator"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

// codeToExit implements spec.md §6's Exit Code Contract.
func codeToExit(code diagnostics.Code) int {
	switch code {
	case diagnostics.ELex, diagnostics.EParse, diagnostics.EAST,
		diagnostics.ENoReturn, diagnostics.EReturnNotLast, diagnostics.EUnknownCap,
		diagnostics.EUndeclaredCap, diagnostics.EUnknownBudget, diagnostics.EDupBinding,
		diagnostics.EUnbound, diagnostics.ECallEffect, diagnostics.EFnDup,
		diagnostics.EUnknownFn, diagnostics.EUnknownTool:
		return 2
	case diagnostics.ECapDenied:
		return 3
	case diagnostics.ETool, diagnostics.EToolArgs, diagnostics.EFn, diagnostics.EBudget,
		diagnostics.EPath, diagnostics.EType, diagnostics.EForNotList,
		diagnostics.EMatchNotRecord, diagnostics.EMatchNoArm, diagnostics.EIO, diagnostics.ETrace:
		return 4
	case diagnostics.EAssert:
		return 5
	default:
		return 4
	}
}

func newRunCmd() *cobra.Command {
	var (
		policyPath  string
		tracePath   string
		traceFormat string
		sandboxRoot string
		watch       bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Parse, validate, and evaluate an A0 program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if traceFormat != "json" && traceFormat != "cbor" {
				return usageError("--trace-format must be 'json' or 'cbor', got %q", traceFormat)
			}
			run := func() error { return runOnce(args[0], policyPath, tracePath, traceFormat, sandboxRoot) }
			if !watch {
				return run()
			}
			return watchAndRun(args[0], run)
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "path to a policy JSON or YAML file (default: allow nothing)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write a run trace to this path")
	cmd.Flags().StringVar(&traceFormat, "trace-format", "json", "trace format: json or cbor")
	cmd.Flags().StringVar(&sandboxRoot, "sandbox-root", ".", "root directory fs.read/fs.write are confined to")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run on source file change")
	return cmd
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return &policy.Policy{Version: 1}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &exitCodeError{code: 1, err: fmt.Errorf("reading policy file: %w", err)}
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return policy.LoadYAML(data)
	default:
		return policy.Load(data)
	}
}

func buildRegistry(sandboxRoot string) *plugin.Registry {
	reg := plugin.NewRegistry()
	if err := stdlib.Install(reg); err != nil {
		panic(fmt.Errorf("installing stdlib: %w", err))
	}
	for _, t := range []plugin.ToolDef{
		tools.FSRead(sandboxRoot),
		tools.FSWrite(sandboxRoot),
		tools.HTTPGet(nil),
		tools.ShellExec(),
	} {
		if err := reg.RegisterTool(t); err != nil {
			panic(fmt.Errorf("registering tool %s: %w", t.Name, err))
		}
	}
	return reg
}

func toolInfoSet(reg *plugin.Registry) map[string]validator.ToolInfo {
	out := map[string]validator.ToolInfo{}
	for _, name := range reg.ToolNames() {
		def, _ := reg.Tool(name)
		out[name] = validator.ToolInfo{Mode: string(def.Mode), Capability: def.Capability}
	}
	return out
}

func runOnce(path, policyPath, tracePath, traceFormat, sandboxRoot string) error {
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

	pol, err := loadPolicy(policyPath)
	if err != nil {
		return &exitCodeError{code: 1, err: err}
	}
	if d := evaluator.CheckPolicy(prog, pol); d != nil {
		fmt.Fprintln(os.Stderr, diagnostics.Pretty([]*diagnostics.Diagnostic{d}))
		return &exitCodeError{code: codeToExit(d.Code), err: fmt.Errorf("policy denied")}
	}

	sink, closeSink, err := openTraceSink(tracePath, traceFormat)
	if err != nil {
		return &exitCodeError{code: 1, err: err}
	}
	if closeSink != nil {
		defer closeSink()
	}

	res := evaluator.Run(prog, reg, evaluator.LimitsFromProgram(prog), sink)
	printRunResult(res)
	if res.Err != nil {
		return &exitCodeError{code: codeToExit(res.Err.Code), err: fmt.Errorf("run failed: %s", res.Err.Message)}
	}
	if res.CheckFailed {
		return &exitCodeError{code: 5, err: fmt.Errorf("one or more checks failed")}
	}
	return nil
}

func openTraceSink(path, format string) (trace.Sink, func(), error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &exitCodeError{code: 1, err: fmt.Errorf("opening trace file: %w", err)}
	}
	closeFn := func() { f.Close() }
	if format == "cbor" {
		sink, err := trace.NewCBORSink(f)
		if err != nil {
			closeFn()
			return nil, nil, &exitCodeError{code: 1, err: err}
		}
		return sink, closeFn, nil
	}
	return trace.NewJSONSink(f), closeFn, nil
}

func printRunResult(res *evaluator.Result) {
	out := map[string]any{"checkFailed": res.CheckFailed}
	if res.Err == nil {
		raw, err := value.ToJSON(res.Value)
		if err == nil {
			out["value"] = json.RawMessage(raw)
		}
	} else {
		out["error"] = map[string]any{"code": res.Err.Code, "message": res.Err.Message}
	}
	enc, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(enc))
}
