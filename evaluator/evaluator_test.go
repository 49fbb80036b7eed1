package evaluator

import (
	"context"
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/budget"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/parser"
	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/policy"
	"github.com/ThomasRohde/Agent0-sub003/stdlib"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

func newRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	if err := stdlib.Install(reg); err != nil {
		t.Fatalf("stdlib install failed: %v", err)
	}
	return reg
}

func TestEvalPureDataAndArithmeticPrecedence(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = 2 + 3 * 4
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsNumber() != 14 {
		t.Fatalf("expected 14, got %v", res.Value)
	}
}

func TestEvalDivisionByZeroIsTypeError(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = 1 / 0
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err == nil || res.Err.Code != diagnostics.EType {
		t.Fatalf("expected E_TYPE, got %v", res.Err)
	}
}

func TestEvalStringConcatenation(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = "foo" + "bar"
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsString() != "foobar" {
		t.Fatalf("expected foobar, got %v", res.Value)
	}
}

func TestCheckPolicyDeniesUndeclaredCapability(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
cap { sh.exec: true }
return true
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	pol := &policy.Policy{Version: 1, Allow: []string{}}
	diag := CheckPolicy(prog, pol)
	if diag == nil || diag.Code != diagnostics.ECapDenied {
		t.Fatalf("expected E_CAP_DENIED, got %v", diag)
	}
}

func TestCheckPolicyGrantsDeclaredCapability(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
cap { fs.read: true }
return true
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	pol := &policy.Policy{Version: 1, Allow: []string{"fs.read"}}
	if diag := CheckPolicy(prog, pol); diag != nil {
		t.Fatalf("expected no denial, got %v", diag)
	}
}

func TestEvalMatchOkAndErrArms(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
fn classify { r } {
  return match (r) {
    ok { v } { return v + 1 }
    err { e } { return 0 - 1 }
  }
}
let a = classify { r: { ok: 10 } }
let b = classify { r: { err: "boom" } }
return a + b
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsNumber() != 10 {
		t.Fatalf("expected 10, got %v", res.Value)
	}
}

func TestEvalMatchNoArmFails(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = match ({ weird: 1 }) {
  ok { v } { return v }
}
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err == nil || res.Err.Code != diagnostics.EMatchNoArm {
		t.Fatalf("expected E_MATCH_NO_ARM, got %v", res.Err)
	}
}

func TestEvalBudgetExceededOnIterations(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let xs = [1, 2, 3, 4, 5]
let doubled = for { in: xs, as: "x" } { return x * 2 }
return doubled
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	limits := budget.Limits{MaxIterations: 2, HasMaxIterations: true}
	res := Run(prog, newRegistry(t), limits, nil)
	if res.Err == nil || res.Err.Code != diagnostics.EBudget {
		t.Fatalf("expected E_BUDGET, got %v", res.Err)
	}
}

func TestEvalAssertFailureIsFatal(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = assert { that: 1 == 2, msg: "nope" }
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err == nil || res.Err.Code != diagnostics.EAssert {
		t.Fatalf("expected E_ASSERT, got %v", res.Err)
	}
	if len(res.Evidence) != 1 || res.Evidence[0].OK {
		t.Fatalf("expected one failing evidence record, got %+v", res.Evidence)
	}
}

func TestEvalCheckFailureIsNotFatal(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let a = check { that: 1 == 2, msg: "nope" }
return a
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !res.CheckFailed {
		t.Fatal("expected CheckFailed to be true")
	}
}

func TestEvalTryCatchCatchesBudgetError(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let xs = [1, 2, 3]
let out = try {
  let y = for { in: xs, as: "x" } { return x }
  return y
} catch { e } {
  return e.code
}
return out
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	limits := budget.Limits{MaxIterations: 1, HasMaxIterations: true}
	res := Run(prog, newRegistry(t), limits, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsString() != string(diagnostics.EBudget) {
		t.Fatalf("expected caught code E_BUDGET, got %v", res.Value)
	}
}

func TestEvalHigherOrderMapReduceFilter(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
fn double { x } { return x * 2 }
fn sum { acc, x } { return acc + x }
fn isEven { x } { return x % 2 == 0 }
let xs = [1, 2, 3, 4, 5]
let doubled = map { list: xs, fn: "double" }
let total = reduce { list: doubled, fn: "sum", init: 0 }
let evens = filter { list: xs, fn: "isEven" }
return { total: total, evens: evens }
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	total, _ := res.Value.Get("total")
	if total.AsNumber() != 30 {
		t.Fatalf("expected total 30, got %v", total)
	}
	evens, _ := res.Value.Get("evens")
	if len(evens.AsList()) != 2 {
		t.Fatalf("expected 2 even numbers, got %v", evens)
	}
}

func TestEvalArrowTargetBindsNestedRecord(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
42 -> result.value
return result
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	inner, ok := res.Value.Get("value")
	if !ok || inner.AsNumber() != 42 {
		t.Fatalf("expected {value: 42}, got %v", res.Value)
	}
}

func TestEvalRecordSpreadMergesFields(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let base = { a: 1, b: 2 }
let merged = { ...base, b: 3, c: 4 }
return merged
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	b, _ := res.Value.Get("b")
	if b.AsNumber() != 3 {
		t.Fatalf("expected later 'b' to win, got %v", b)
	}
	c, _ := res.Value.Get("c")
	if c.AsNumber() != 4 {
		t.Fatalf("expected c present, got %v", res.Value)
	}
}

func TestEvalLoopZeroTimesReturnsInitUnchanged(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let out = loop { in: 7, times: 0, as: "acc" } { return acc + 1 }
return out
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsNumber() != 7 {
		t.Fatalf("expected untouched init value 7, got %v", res.Value)
	}
}

func TestEvalLoopAccumulatesAcrossTicks(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
let out = loop { in: 0, times: 3, as: "acc" } { return acc + 1 }
return out
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsNumber() != 3 {
		t.Fatalf("expected 3 ticks, got %v", res.Value)
	}
}

func TestEvalFnForwardReferenceAcrossNesting(t *testing.T) {
	prog, d := parser.Parse("t.a0", `
fn outer { x } {
  if (x > 0) {
    fn inner { y } { return y * 10 }
  }
  return inner { y: x }
}
return outer { x: 2 }
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, newRegistry(t), budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value.AsNumber() != 20 {
		t.Fatalf("expected 20, got %v", res.Value)
	}
}

func TestEvalToolDispatchCallAndDo(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.RegisterTool(plugin.ToolDef{
		Name: "fs.read",
		Mode: plugin.ModeRead,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			path, _ := args.Get("path")
			return value.NewRecord([]value.Entry{{Key: "content", Value: value.NewString("hi:" + path.AsString())}}), nil
		},
	}); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	if err := reg.RegisterTool(plugin.ToolDef{
		Name: "fs.write",
		Mode: plugin.ModeEffect,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) {
			content, _ := args.Get("content")
			return value.NewRecord([]value.Entry{
				{Key: "ok", Value: value.NewBool(true)},
				{Key: "bytes", Value: value.NewNumber(float64(len(content.AsString())))},
			}), nil
		},
	}); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	prog, d := parser.Parse("t.a0", `
let r = call? fs.read { path: "a.txt" }
let w = do fs.write { content: r.content }
return w
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, reg, budget.Limits{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	ok, _ := res.Value.Get("ok")
	if !ok.AsBool() {
		t.Fatalf("expected ok true, got %v", res.Value)
	}
}

func TestEvalCallEffectToolRejected(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.RegisterTool(plugin.ToolDef{
		Name:    "sh.exec",
		Mode:    plugin.ModeEffect,
		Execute: func(ctx context.Context, args value.Value) (value.Value, error) { return value.NewNull(), nil },
	}); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	prog, d := parser.Parse("t.a0", `
let r = call? sh.exec { cmd: "ls" }
return r
`)
	if d != nil {
		t.Fatalf("parse error: %v", d)
	}
	res := Run(prog, reg, budget.Limits{}, nil)
	if res.Err == nil || res.Err.Code != diagnostics.ECallEffect {
		t.Fatalf("expected E_CALL_EFFECT, got %v", res.Err)
	}
}
