// Package validator implements the A0 semantic checks (spec §4.C5): it
// never mutates the AST and collects every diagnostic it can instead of
// stopping at the first. Grounded on the collect-don't-stop validation
// style of the teacher's core/types.Validator, recast from runtime
// JSON-schema checking to static AST analysis, with fuzzy "did you
// mean" hints wired from diagnostics.SuggestHint.
package validator

import (
	"github.com/ThomasRohde/Agent0-sub003/ast"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/stdlib"
)

// ToolInfo is the read-only view of one registered tool the validator
// needs: its effect mode and the capability gating it.
type ToolInfo struct {
	Mode       string // "read" or "effect"
	Capability string
}

var validCapabilities = []string{"fs.read", "fs.write", "http.get", "sh.exec"}

var validBudgetFields = []string{"timeMs", "maxToolCalls", "maxBytesWritten", "maxIterations"}

func isValidCapability(name string) bool {
	for _, c := range validCapabilities {
		if c == name {
			return true
		}
	}
	return false
}

func isValidBudgetField(name string) bool {
	for _, f := range validBudgetFields {
		if f == name {
			return true
		}
	}
	return false
}

// validator accumulates diagnostics across one Validate call.
type validator struct {
	diags       []*diagnostics.Diagnostic
	tools       map[string]ToolInfo
	declaredCap map[string]bool
	fnNames     map[string]bool // all user fn names in the program, for E_UNKNOWN_FN/E_FN_DUP
	root        *scope          // the program's top-level scope; see checkFnDecl
}

// Validate runs every check in spec §4.C5 against prog, given the set
// of tools known to the host (by name, mode and gating capability).
func Validate(prog *ast.Program, tools map[string]ToolInfo) []*diagnostics.Diagnostic {
	v := &validator{tools: tools, declaredCap: map[string]bool{}}
	v.checkHeaders(prog)
	v.collectFnNames(prog.Statements)
	v.root = newScope(nil)
	v.checkBlock(prog.Statements, v.root)
	return v.diags
}

func (v *validator) add(d *diagnostics.Diagnostic) { v.diags = append(v.diags, d) }

func toDiagSpan(s ast.Span) diagnostics.Span {
	return diagnostics.Span{File: s.File, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}

// ---- headers: capabilities, budget, import ----

func (v *validator) checkHeaders(prog *ast.Program) {
	for _, cap_ := range prog.CapDecls {
		for _, e := range cap_.Entries {
			if !isValidCapability(e.Name) {
				v.add(diagnostics.New(diagnostics.EUnknownCap, "unknown capability '"+e.Name+"'").
					WithSpan(toDiagSpan(e.Pos)).
					WithHint(diagnostics.SuggestHint(e.Name, validCapabilities)))
				continue
			}
			v.declaredCap[e.Name] = true
			if !e.ValueOK {
				v.add(diagnostics.New(diagnostics.ECapValue, "capability '"+e.Name+"' must be the literal 'true'").
					WithSpan(toDiagSpan(e.Pos)))
			}
		}
	}

	if len(prog.BudgetDecls) > 1 {
		v.add(diagnostics.New(diagnostics.EAST, "duplicate 'budget' header").
			WithSpan(toDiagSpan(prog.BudgetDecls[1].Pos)))
	}
	for _, b := range prog.BudgetDecls {
		for _, f := range b.Fields {
			if !isValidBudgetField(f.Name) {
				v.add(diagnostics.New(diagnostics.EUnknownBudget, "unknown budget field '"+f.Name+"'").
					WithSpan(toDiagSpan(f.Pos)).
					WithHint(diagnostics.SuggestHint(f.Name, validBudgetFields)))
				continue
			}
			if !f.LiteralOK {
				v.add(diagnostics.New(diagnostics.EAST, "budget field '"+f.Name+"' must be an integer or float literal").
					WithSpan(toDiagSpan(f.Pos)))
			}
		}
	}

	for _, imp := range prog.Imports {
		v.add(diagnostics.New(diagnostics.EImportUnsupported, "import headers are reserved and not supported").
			WithSpan(toDiagSpan(imp.Pos)))
	}
}

// ---- fn name collection (check 4: pre-declared before validating bodies) ----
//
// Function names are unique across the whole program (spec §3
// Invariants), so fn declarations are collected once, recursively,
// before any block is checked; this also lets a fn at any nesting
// level forward-reference one declared later in the program.
func (v *validator) collectFnNames(stmts []ast.Statement) {
	v.fnNames = map[string]bool{}
	v.walkFnDecls(stmts)
}

func (v *validator) walkFnDecls(stmts []ast.Statement) {
	for _, s := range stmts {
		if fn, ok := s.(*ast.FnDecl); ok {
			v.declareFnName(fn)
			v.walkFnDecls(fn.Body)
			continue
		}
		for _, block := range nestedBlocks(s) {
			v.walkFnDecls(block)
		}
	}
}

func (v *validator) declareFnName(fn *ast.FnDecl) {
	if stdlib.Known(fn.Name) {
		v.add(diagnostics.New(diagnostics.EFnDup, "function '"+fn.Name+"' collides with a stdlib function of the same name").
			WithSpan(toDiagSpan(fn.Pos)))
		return
	}
	if v.fnNames[fn.Name] {
		v.add(diagnostics.New(diagnostics.EFnDup, "duplicate function '"+fn.Name+"'").
			WithSpan(toDiagSpan(fn.Pos)))
		return
	}
	v.fnNames[fn.Name] = true
}

// nestedBlocks returns every statement-list directly reachable from a
// statement's expression(s), without recursing further (callers
// recurse). Used for program-wide fn-name collection.
func nestedBlocks(s ast.Statement) [][]ast.Statement {
	switch st := s.(type) {
	case *ast.LetStmt:
		return blocksInExpr(st.Value)
	case *ast.ExprStmt:
		return blocksInExpr(st.Expr)
	case *ast.ReturnStmt:
		return blocksInExpr(st.Expr)
	case *ast.FnDecl:
		return [][]ast.Statement{st.Body}
	}
	return nil
}

func blocksInExpr(e ast.Expr) [][]ast.Statement {
	switch ex := e.(type) {
	case *ast.IfBlockExpr:
		out := [][]ast.Statement{ex.Then}
		if ex.HasElse {
			out = append(out, ex.Else)
		}
		return out
	case *ast.ForExpr:
		return [][]ast.Statement{ex.Body}
	case *ast.FilterBlockExpr:
		return [][]ast.Statement{ex.Body}
	case *ast.LoopExpr:
		return [][]ast.Statement{ex.Body}
	case *ast.MatchExpr:
		var out [][]ast.Statement
		if ex.OkArm != nil {
			out = append(out, ex.OkArm.Body)
		}
		if ex.ErrArm != nil {
			out = append(out, ex.ErrArm.Body)
		}
		return out
	case *ast.TryExpr:
		return [][]ast.Statement{ex.TryBody, ex.CatchBody}
	case *ast.BinaryExpr:
		return append(blocksInExpr(ex.Left), blocksInExpr(ex.Right)...)
	case *ast.UnaryExpr:
		return blocksInExpr(ex.Operand)
	case *ast.RecordExpr:
		var out [][]ast.Statement
		for _, entry := range ex.Entries {
			switch en := entry.(type) {
			case *ast.Pair:
				out = append(out, blocksInExpr(en.Value)...)
			case *ast.Spread:
				out = append(out, blocksInExpr(en.Expr)...)
			}
		}
		return out
	case *ast.ListExpr:
		var out [][]ast.Statement
		for _, el := range ex.Elements {
			out = append(out, blocksInExpr(el)...)
		}
		return out
	case *ast.IfRecordExpr:
		out := blocksInExpr(ex.Cond)
		out = append(out, blocksInExpr(ex.Then)...)
		out = append(out, blocksInExpr(ex.Else)...)
		return out
	case *ast.AssertExpr:
		return append(blocksInExpr(ex.That), blocksInExpr(ex.Msg)...)
	case *ast.CheckExpr:
		return append(blocksInExpr(ex.That), blocksInExpr(ex.Msg)...)
	case *ast.CallExpr:
		if ex.Args != nil {
			return blocksInExpr(ex.Args)
		}
	case *ast.DoExpr:
		if ex.Args != nil {
			return blocksInExpr(ex.Args)
		}
	case *ast.FnCallExpr:
		if ex.Args != nil {
			return blocksInExpr(ex.Args)
		}
	}
	return nil
}
