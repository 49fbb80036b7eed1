package validator

import (
	"github.com/ThomasRohde/Agent0-sub003/ast"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/stdlib"
)

func (v *validator) checkExpr(e ast.Expr, sc *scope) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ast.IntLiteral, *ast.FloatLiteral, *ast.BoolLiteral, *ast.NullLiteral, *ast.StringLiteral:
		// no-op
	case *ast.IdentPath:
		if !sc.resolve(ex.Parts[0]) {
			v.add(diagnostics.New(diagnostics.EUnbound, "unbound name '"+ex.Parts[0]+"'").
				WithSpan(toDiagSpan(ex.Pos)).
				WithHint(diagnostics.SuggestHint(ex.Parts[0], v.allBoundNames(sc))))
		}
	case *ast.RecordExpr:
		v.checkRecordEntries(ex.Entries, sc)
	case *ast.ListExpr:
		for _, el := range ex.Elements {
			v.checkExpr(el, sc)
		}
	case *ast.BinaryExpr:
		v.checkExpr(ex.Left, sc)
		v.checkExpr(ex.Right, sc)
	case *ast.UnaryExpr:
		v.checkExpr(ex.Operand, sc)
	case *ast.IfRecordExpr:
		v.checkExpr(ex.Cond, sc)
		v.checkExpr(ex.Then, sc)
		v.checkExpr(ex.Else, sc)
	case *ast.IfBlockExpr:
		v.checkExpr(ex.Cond, sc)
		v.checkBlock(ex.Then, newScope(sc))
		if ex.HasElse {
			v.checkBlock(ex.Else, newScope(sc))
		}
	case *ast.ForExpr:
		v.checkExpr(ex.List, sc)
		child := newScope(sc)
		child.bind(ex.Binding)
		v.checkBlock(ex.Body, child)
	case *ast.FilterBlockExpr:
		v.checkExpr(ex.List, sc)
		child := newScope(sc)
		child.bind(ex.Binding)
		v.checkBlock(ex.Body, child)
	case *ast.LoopExpr:
		if ex.Init != nil {
			v.checkExpr(ex.Init, sc)
		}
		if ex.Times != nil {
			v.checkExpr(ex.Times, sc)
		}
		child := newScope(sc)
		child.bind(ex.Binding)
		v.checkBlock(ex.Body, child)
	case *ast.MatchExpr:
		v.checkExpr(ex.Subject, sc)
		if ex.OkArm != nil {
			child := newScope(sc)
			child.bind(ex.OkArm.Binding)
			v.checkBlock(ex.OkArm.Body, child)
		}
		if ex.ErrArm != nil {
			child := newScope(sc)
			child.bind(ex.ErrArm.Binding)
			v.checkBlock(ex.ErrArm.Body, child)
		}
	case *ast.TryExpr:
		v.checkBlock(ex.TryBody, newScope(sc))
		catchScope := newScope(sc)
		catchScope.bind(ex.CatchBinding)
		v.checkBlock(ex.CatchBody, catchScope)
	case *ast.AssertExpr:
		v.checkExpr(ex.That, sc)
		v.checkExpr(ex.Msg, sc)
	case *ast.CheckExpr:
		v.checkExpr(ex.That, sc)
		v.checkExpr(ex.Msg, sc)
	case *ast.CallExpr:
		v.checkToolCall(ex.ToolPath, ex.Pos, true, sc)
		v.checkExpr(ex.Args, sc)
	case *ast.DoExpr:
		v.checkToolCall(ex.ToolPath, ex.Pos, false, sc)
		v.checkExpr(ex.Args, sc)
	case *ast.FnCallExpr:
		v.checkFnCall(ex, sc)
		v.checkExpr(ex.Args, sc)
	}
}

func (v *validator) checkRecordEntries(entries []ast.RecordEntry, sc *scope) {
	for _, entry := range entries {
		switch en := entry.(type) {
		case *ast.Pair:
			v.checkExpr(en.Value, sc)
		case *ast.Spread:
			v.checkExpr(en.Expr, sc)
		}
	}
}

// allBoundNames returns every name resolvable from sc, used only to
// build "did you mean" hints for E_UNBOUND.
func (v *validator) allBoundNames(sc *scope) []string {
	var out []string
	for cur := sc; cur != nil; cur = cur.parent {
		for name := range cur.names {
			out = append(out, name)
		}
	}
	return out
}

func (v *validator) checkToolCall(pathParts []string, pos ast.Span, isRead bool, sc *scope) {
	path := ast.Joined(pathParts)
	tool, ok := v.tools[path]
	if !ok {
		v.add(diagnostics.New(diagnostics.EUnknownTool, "unknown tool '"+path+"'").
			WithSpan(toDiagSpan(pos)).
			WithHint(diagnostics.SuggestHint(path, v.toolNames())))
		return
	}
	if isRead && tool.Mode == "effect" {
		v.add(diagnostics.New(diagnostics.ECallEffect, "tool '"+path+"' has effect mode and cannot be invoked with 'call?'; use 'do'").
			WithSpan(toDiagSpan(pos)))
	}
	if tool.Capability != "" && !v.declaredCap[tool.Capability] {
		v.add(diagnostics.New(diagnostics.EUndeclaredCap, "tool '"+path+"' requires capability '"+tool.Capability+"', which is not declared in 'cap { ... }'").
			WithSpan(toDiagSpan(pos)))
	}
}

func (v *validator) toolNames() []string {
	out := make([]string, 0, len(v.tools))
	for name := range v.tools {
		out = append(out, name)
	}
	return out
}

func (v *validator) checkFnCall(ex *ast.FnCallExpr, sc *scope) {
	path := ast.Joined(ex.NamePath)
	if _, isTool := v.tools[path]; isTool {
		v.add(diagnostics.New(diagnostics.EUnknownFn, "'"+path+"' is a tool, not a function; use 'call?' or 'do'").
			WithSpan(toDiagSpan(ex.Pos)).
			WithHint("did you mean 'call? "+path+"' or 'do "+path+"'?"))
		return
	}
	if len(ex.NamePath) == 1 && v.fnNames[ex.NamePath[0]] {
		return
	}
	if stdlib.Known(path) {
		return
	}
	v.add(diagnostics.New(diagnostics.EUnknownFn, "unknown function '"+path+"'").
		WithSpan(toDiagSpan(ex.Pos)).
		WithHint(diagnostics.SuggestHint(path, v.knownFnNames())))
}

func (v *validator) knownFnNames() []string {
	out := append([]string{}, stdlib.Names...)
	for name := range v.fnNames {
		out = append(out, name)
	}
	return out
}
