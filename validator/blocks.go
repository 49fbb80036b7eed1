package validator

import (
	"github.com/ThomasRohde/Agent0-sub003/ast"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
)

// checkBlock enforces check 1 (return well-formedness) for one
// statement list and walks each statement for scoping (check 4) and
// expression-level checks (checks 5 & 6), threading a fresh child
// scope for every nested block.
func (v *validator) checkBlock(stmts []ast.Statement, sc *scope) {
	v.checkReturnShape(stmts)
	for _, s := range stmts {
		v.checkStatement(s, sc)
	}
}

func (v *validator) checkReturnShape(stmts []ast.Statement) {
	if len(stmts) == 0 {
		return
	}
	last := len(stmts) - 1
	if _, ok := stmts[last].(*ast.ReturnStmt); !ok {
		v.add(diagnostics.New(diagnostics.ENoReturn, "block must end with a 'return' statement").
			WithSpan(toDiagSpan(stmts[last].Span())))
	}
	for i, s := range stmts {
		if _, ok := s.(*ast.ReturnStmt); ok && i != last {
			v.add(diagnostics.New(diagnostics.EReturnNotLast, "'return' must be the last statement in its block").
				WithSpan(toDiagSpan(s.Span())))
		}
	}
}

func (v *validator) checkStatement(s ast.Statement, sc *scope) {
	switch st := s.(type) {
	case *ast.LetStmt:
		v.checkExpr(st.Value, sc)
		v.bindName(st.Name, st.Pos, sc)
	case *ast.ExprStmt:
		v.checkExpr(st.Expr, sc)
		if len(st.ArrowTarget) > 0 {
			v.bindName(st.ArrowTarget[0], st.Pos, sc)
		}
	case *ast.ReturnStmt:
		v.checkExpr(st.Expr, sc)
	case *ast.FnDecl:
		v.checkFnDecl(st, sc)
	}
}

func (v *validator) bindName(name string, pos ast.Span, sc *scope) {
	if sc.declaredHere(name) {
		v.add(diagnostics.New(diagnostics.EDupBinding, "duplicate binding '"+name+"' in this scope").
			WithSpan(toDiagSpan(pos)))
		return
	}
	sc.bind(name)
}

// checkFnDecl validates a fn body against the program's root scope,
// not the scope enclosing the declaration. This mirrors the evaluator
// (evaluator/fns.go's FnEntry.DefScope is always the program root env,
// regardless of nesting), so a fn nested inside a for/filter/loop/
// match/try body cannot see that construct's own as/match/catch
// binding here any more than it can at runtime.
func (v *validator) checkFnDecl(fn *ast.FnDecl, _ *scope) {
	body := newScope(v.root)
	seen := map[string]bool{}
	for _, param := range fn.Params {
		if seen[param] {
			v.add(diagnostics.New(diagnostics.EDupBinding, "duplicate parameter '"+param+"' in function '"+fn.Name+"'").
				WithSpan(toDiagSpan(fn.Pos)))
			continue
		}
		seen[param] = true
		body.bind(param)
	}
	v.checkBlock(fn.Body, body)
}
