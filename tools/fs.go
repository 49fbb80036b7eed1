// Package tools provides a reference implementation of the four
// capabilities A0 programs can declare (spec.md §5's ToolExecutor
// contract), registered into a plugin.Registry by the CLI host. The
// core never imports this package — tools are a host concern, wired
// only at cmd/a0's construction time.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

// resolveUnderRoot joins root and rel, rejecting any path that would
// escape root via ".." segments or an absolute override.
func resolveUnderRoot(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative, got %q", rel)
	}
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(cleanRoot, rel)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes sandbox root", rel)
	}
	return full, nil
}

var fsReadSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"path"},
	"additionalProperties": false,
	"properties": map[string]any{
		"path": map[string]any{"type": "string"},
	},
}

// FSRead builds the fs.read tool (mode read), sandboxed under root.
func FSRead(root string) plugin.ToolDef {
	return plugin.ToolDef{
		Name:       "fs.read",
		Mode:       plugin.ModeRead,
		Capability: "fs.read",
		Schema:     fsReadSchema,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			pathV, _ := args.Get("path")
			full, err := resolveUnderRoot(root, pathV.AsString())
			if err != nil {
				return value.Value{}, err
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return value.Value{}, fmt.Errorf("fs.read: %w", err)
			}
			return value.NewRecord([]value.Entry{
				{Key: "content", Value: value.NewString(string(data))},
				{Key: "bytes", Value: value.NewNumber(float64(len(data)))},
			}), nil
		},
	}
}

var fsWriteSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"path", "content"},
	"additionalProperties": false,
	"properties": map[string]any{
		"path":    map[string]any{"type": "string"},
		"content": map[string]any{"type": "string"},
	},
}

// FSWrite builds the fs.write tool (mode effect), sandboxed under
// root. Its result carries a numeric `bytes` field the evaluator feeds
// into the budget accountant's maxBytesWritten check.
func FSWrite(root string) plugin.ToolDef {
	return plugin.ToolDef{
		Name:       "fs.write",
		Mode:       plugin.ModeEffect,
		Capability: "fs.write",
		Schema:     fsWriteSchema,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			pathV, _ := args.Get("path")
			contentV, _ := args.Get("content")
			full, err := resolveUnderRoot(root, pathV.AsString())
			if err != nil {
				return value.Value{}, err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return value.Value{}, fmt.Errorf("fs.write: %w", err)
			}
			content := contentV.AsString()
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return value.Value{}, fmt.Errorf("fs.write: %w", err)
			}
			return value.NewRecord([]value.Entry{
				{Key: "bytes", Value: value.NewNumber(float64(len(content)))},
			}), nil
		},
	}
}
