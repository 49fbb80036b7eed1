package parser

import (
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/ast"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse("t.a0", src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return prog
}

func TestParseMinimalProgram(t *testing.T) {
	prog := mustParse(t, `return 1`)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	if _, ok := prog.Statements[0].(*ast.ReturnStmt); !ok {
		t.Fatalf("expected ReturnStmt, got %T", prog.Statements[0])
	}
}

func TestParseHeadersAndLet(t *testing.T) {
	src := `
cap { fs.read: true }
budget { timeMs: 1000, maxToolCalls: 10 }
let x = 1 + 2 * 3
return x
`
	prog := mustParse(t, src)
	if len(prog.CapDecls) != 1 || len(prog.CapDecls[0].Entries) != 1 {
		t.Fatalf("expected one cap entry, got %+v", prog.CapDecls)
	}
	if len(prog.BudgetDecls) != 1 || len(prog.BudgetDecls[0].Fields) != 2 {
		t.Fatalf("expected two budget fields, got %+v", prog.BudgetDecls)
	}
	let, ok := prog.Statements[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected LetStmt, got %T", prog.Statements[0])
	}
	bin, ok := let.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %#v", let.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := mustParse(t, `return 1 + 2 * 3 == 7`)
	ret := prog.Statements[0].(*ast.ReturnStmt)
	eq, ok := ret.Expr.(*ast.BinaryExpr)
	if !ok || eq.Op != "==" {
		t.Fatalf("expected top-level '==', got %#v", ret.Expr)
	}
	if _, ok := eq.Left.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected left side to be '+' expr, got %#v", eq.Left)
	}
}

func TestParseArrowTarget(t *testing.T) {
	prog := mustParse(t, `
let r = { a: 1 }
r -> out.nested
return out
`)
	stmt := prog.Statements[1].(*ast.ExprStmt)
	if len(stmt.ArrowTarget) != 2 || stmt.ArrowTarget[0] != "out" || stmt.ArrowTarget[1] != "nested" {
		t.Fatalf("unexpected arrow target: %#v", stmt.ArrowTarget)
	}
}

func TestParseIfRecordAndBlock(t *testing.T) {
	prog := mustParse(t, `
let a = if { cond: true, then: 1, else: 2 }
if (a == 1) {
  return a
} else {
  return 0
}
`)
	let := prog.Statements[0].(*ast.LetStmt)
	if _, ok := let.Value.(*ast.IfRecordExpr); !ok {
		t.Fatalf("expected IfRecordExpr, got %#v", let.Value)
	}
	exprStmt := prog.Statements[1].(*ast.ExprStmt)
	ifBlock, ok := exprStmt.Expr.(*ast.IfBlockExpr)
	if !ok || !ifBlock.HasElse {
		t.Fatalf("expected IfBlockExpr with else, got %#v", exprStmt.Expr)
	}
}

func TestParseForFilterLoop(t *testing.T) {
	prog := mustParse(t, `
let xs = [1, 2, 3]
let doubled = for { in: xs, as: "n" } { return n * 2 }
let evens = filter { in: xs, as: "n" } { return n % 2 == 0 }
let total = loop { in: 0, times: 3, as: "acc" } { return acc + 1 }
return total
`)
	if _, ok := prog.Statements[1].(*ast.LetStmt).Value.(*ast.ForExpr); !ok {
		t.Fatalf("expected ForExpr")
	}
	if _, ok := prog.Statements[2].(*ast.LetStmt).Value.(*ast.FilterBlockExpr); !ok {
		t.Fatalf("expected FilterBlockExpr")
	}
	if _, ok := prog.Statements[3].(*ast.LetStmt).Value.(*ast.LoopExpr); !ok {
		t.Fatalf("expected LoopExpr")
	}
}

func TestParseMatchTryAssertCheck(t *testing.T) {
	prog := mustParse(t, `
let m = match result {
  ok { v } { return v }
  err { e } { return 0 }
}
try {
  assert { that: true, msg: "ok" }
  return 1
} catch { e } {
  return 0
}
check { that: m == 1, msg: "m should be 1" }
return m
`)
	if _, ok := prog.Statements[0].(*ast.LetStmt).Value.(*ast.MatchExpr); !ok {
		t.Fatalf("expected MatchExpr")
	}
	if _, ok := prog.Statements[1].(*ast.ExprStmt).Expr.(*ast.TryExpr); !ok {
		t.Fatalf("expected TryExpr")
	}
	if _, ok := prog.Statements[2].(*ast.ExprStmt).Expr.(*ast.CheckExpr); !ok {
		t.Fatalf("expected CheckExpr")
	}
}

func TestParseCallDoAndFnCall(t *testing.T) {
	prog := mustParse(t, `
cap { fs.read: true }
let content = call? fs.read { path: "a.txt" }
do fs.write { path: "b.txt", content: "x" }
let joined = str.concat { parts: ["a", "b"] }
return joined
`)
	let0 := prog.Statements[1].(*ast.LetStmt)
	callExpr, ok := let0.Value.(*ast.CallExpr)
	if !ok || ast.Joined(callExpr.ToolPath) != "fs.read" {
		t.Fatalf("expected CallExpr fs.read, got %#v", let0.Value)
	}
	exprStmt := prog.Statements[2].(*ast.ExprStmt)
	doExpr, ok := exprStmt.Expr.(*ast.DoExpr)
	if !ok || ast.Joined(doExpr.ToolPath) != "fs.write" {
		t.Fatalf("expected DoExpr fs.write, got %#v", exprStmt.Expr)
	}
	let1 := prog.Statements[3].(*ast.LetStmt)
	fnCall, ok := let1.Value.(*ast.FnCallExpr)
	if !ok || ast.Joined(fnCall.NamePath) != "str.concat" {
		t.Fatalf("expected FnCallExpr str.concat, got %#v", let1.Value)
	}
}

func TestParseSpreadRecord(t *testing.T) {
	prog := mustParse(t, `
let base = { a: 1 }
let merged = { ...base, b: 2 }
return merged
`)
	let := prog.Statements[1].(*ast.LetStmt)
	rec, ok := let.Value.(*ast.RecordExpr)
	if !ok || len(rec.Entries) != 2 {
		t.Fatalf("expected record with 2 entries, got %#v", let.Value)
	}
	if _, ok := rec.Entries[0].(*ast.Spread); !ok {
		t.Fatalf("expected first entry to be a Spread, got %#v", rec.Entries[0])
	}
}

func TestParseHaltsOnFirstError(t *testing.T) {
	_, err := Parse("t.a0", `let x = `)
	if err == nil {
		t.Fatal("expected E_PARSE error")
	}
	if err.Code != "E_PARSE" {
		t.Fatalf("expected E_PARSE, got %v", err.Code)
	}
}
