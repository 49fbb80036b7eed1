package plugin

import (
	"context"
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/value"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterTool(ToolDef{
		Name: "fs.read", Mode: ModeRead, Capability: "fs.read",
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			return value.NewString("ok"), nil
		},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tool, ok := r.Tool("fs.read")
	if !ok || tool.Mode != ModeRead {
		t.Fatalf("expected fs.read registered as read mode")
	}
	if err := r.RegisterTool(ToolDef{Name: "fs.read", Mode: ModeRead}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestValidateArgsNilSchemaPasses(t *testing.T) {
	def := ToolDef{Name: "fs.read"}
	args := value.NewRecord([]value.Entry{{Key: "path", Value: value.NewString("a.txt")}})
	if err := ValidateArgs(def, args); err != nil {
		t.Fatalf("expected nil-schema validation to pass, got %v", err)
	}
}

func TestValidateArgsSchemaMismatch(t *testing.T) {
	def := ToolDef{
		Name: "fs.read",
		Schema: map[string]any{
			"type":                 "object",
			"required":             []any{"path"},
			"properties":           map[string]any{"path": map[string]any{"type": "string"}},
			"additionalProperties": true,
		},
	}
	args := value.NewRecord([]value.Entry{{Key: "other", Value: value.NewNumber(1)}})
	err := ValidateArgs(def, args)
	if err == nil {
		t.Fatal("expected E_TOOL_ARGS for missing required property")
	}
	if err.Code != "E_TOOL_ARGS" {
		t.Fatalf("expected E_TOOL_ARGS, got %v", err.Code)
	}
}

func TestValidateArgsSchemaMatch(t *testing.T) {
	def := ToolDef{
		Name: "fs.write",
		Schema: map[string]any{
			"type":       "object",
			"required":   []any{"path", "content"},
			"properties": map[string]any{"path": map[string]any{"type": "string"}, "content": map[string]any{"type": "string"}},
		},
	}
	args := value.NewRecord([]value.Entry{
		{Key: "path", Value: value.NewString("a.txt")},
		{Key: "content", Value: value.NewString("hi")},
	})
	if err := ValidateArgs(def, args); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
}
