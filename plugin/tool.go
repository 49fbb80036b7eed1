// Package plugin defines the tool and stdlib plugin contracts the
// evaluator depends on (spec §4.C10) and a registry the host populates
// before a run. Grounded on the retrieved original evaluator's ToolDef/
// StdlibFn shapes, with runtime argument-schema validation added via
// github.com/santhosh-tekuri/jsonschema/v5, mirroring the teacher's
// core/types.Validator pattern of compiling and caching JSON schemas.
package plugin

import (
	"context"

	"github.com/ThomasRohde/Agent0-sub003/value"
)

// Mode is a tool's effect classification (spec §4.C10).
type Mode string

const (
	ModeRead   Mode = "read"
	ModeEffect Mode = "effect"
)

// Executor performs a tool's side effect (or read) given an argument
// record and a cancellation handle, returning a result value or an
// error.
type Executor func(ctx context.Context, args value.Value) (value.Value, error)

// ToolDef is one registered tool.
type ToolDef struct {
	Name       string
	Mode       Mode
	Capability string
	// Schema is an optional JSON Schema (as a decoded map, matching
	// encoding/json's object shape) validated against the argument
	// record before Execute runs. A nil Schema skips validation.
	Schema  map[string]any
	Execute Executor
}

// StdlibFn is one pure, synchronous stdlib function (spec §4.C10).
type StdlibFn struct {
	Name    string
	Execute func(args value.Value) (value.Value, error)
}
