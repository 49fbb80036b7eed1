package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// schemaCache compiles each tool's JSON Schema once and reuses it,
// mirroring the teacher's core/types.Validator compiled-schema cache.
var schemaCache = struct {
	mu    sync.Mutex
	byRef map[string]*jsonschema.Schema
}{byRef: make(map[string]*jsonschema.Schema)}

func compile(name string, schema map[string]any) (*jsonschema.Schema, error) {
	schemaCache.mu.Lock()
	defer schemaCache.mu.Unlock()
	if s, ok := schemaCache.byRef[name]; ok {
		return s, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	const res = "mem://schema.json"
	if err := compiler.AddResource(res, bytesReader(raw)); err != nil {
		return nil, err
	}
	s, err := compiler.Compile(res)
	if err != nil {
		return nil, err
	}
	schemaCache.byRef[name] = s
	return s, nil
}

// ValidateArgs checks args against def's schema (if any), returning an
// E_TOOL_ARGS diagnostic on mismatch. A nil Schema always succeeds.
func ValidateArgs(def ToolDef, args value.Value) *diagnostics.Diagnostic {
	if def.Schema == nil {
		return nil
	}
	s, err := compile(def.Name, def.Schema)
	if err != nil {
		return diagnostics.New(diagnostics.EToolArgs, fmt.Sprintf("schema compilation failed for tool %q: %v", def.Name, err))
	}
	raw, err := value.ToJSON(args)
	if err != nil {
		return diagnostics.New(diagnostics.EToolArgs, fmt.Sprintf("failed to encode arguments for tool %q: %v", def.Name, err))
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return diagnostics.New(diagnostics.EToolArgs, fmt.Sprintf("failed to decode arguments for tool %q: %v", def.Name, err))
	}
	if err := s.Validate(decoded); err != nil {
		return diagnostics.New(diagnostics.EToolArgs, fmt.Sprintf("arguments for tool %q failed validation: %v", def.Name, err))
	}
	return nil
}
