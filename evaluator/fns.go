package evaluator

import "github.com/ThomasRohde/Agent0-sub003/ast"

// FnEntry is one hoisted `fn` declaration paired with its closure
// scope. The validator treats fn names as unique across the whole
// program and visible for forward reference at any nesting level
// (spec §4.C5 point 4); the evaluator mirrors that by hoisting every
// fn in the program, wherever declared, into a single table before
// execution begins, all closing over the program's root scope. A
// user fn therefore never captures an enclosing let-binding — only
// other fns and stdlib names, which matches the only forward-reference
// behaviour the spec actually requires.
type FnEntry struct {
	Decl     *ast.FnDecl
	DefScope *Env
}

// collectFnDecls recursively walks every statement list reachable from
// stmts and records each FnDecl found, keyed by name.
func collectFnDecls(stmts []ast.Statement, root *Env, table map[string]FnEntry) {
	for _, st := range stmts {
		switch s := st.(type) {
		case *ast.FnDecl:
			table[s.Name] = FnEntry{Decl: s, DefScope: root}
			collectFnDecls(s.Body, root, table)
		case *ast.LetStmt:
			collectFnDeclsExpr(s.Value, root, table)
		case *ast.ExprStmt:
			collectFnDeclsExpr(s.Expr, root, table)
		case *ast.ReturnStmt:
			collectFnDeclsExpr(s.Expr, root, table)
		}
	}
}

func collectFnDeclsExpr(e ast.Expr, root *Env, table map[string]FnEntry) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ast.IfRecordExpr:
		collectFnDeclsExpr(ex.Cond, root, table)
		collectFnDeclsExpr(ex.Then, root, table)
		collectFnDeclsExpr(ex.Else, root, table)
	case *ast.IfBlockExpr:
		collectFnDeclsExpr(ex.Cond, root, table)
		collectFnDecls(ex.Then, root, table)
		collectFnDecls(ex.Else, root, table)
	case *ast.ForExpr:
		collectFnDeclsExpr(ex.List, root, table)
		collectFnDecls(ex.Body, root, table)
	case *ast.FilterBlockExpr:
		collectFnDeclsExpr(ex.List, root, table)
		collectFnDecls(ex.Body, root, table)
	case *ast.LoopExpr:
		collectFnDeclsExpr(ex.Init, root, table)
		collectFnDeclsExpr(ex.Times, root, table)
		collectFnDecls(ex.Body, root, table)
	case *ast.MatchExpr:
		collectFnDeclsExpr(ex.Subject, root, table)
		if ex.OkArm != nil {
			collectFnDecls(ex.OkArm.Body, root, table)
		}
		if ex.ErrArm != nil {
			collectFnDecls(ex.ErrArm.Body, root, table)
		}
	case *ast.TryExpr:
		collectFnDecls(ex.TryBody, root, table)
		collectFnDecls(ex.CatchBody, root, table)
	case *ast.RecordExpr:
		for _, re := range ex.Entries {
			switch e2 := re.(type) {
			case *ast.Pair:
				collectFnDeclsExpr(e2.Value, root, table)
			case *ast.Spread:
				collectFnDeclsExpr(e2.Expr, root, table)
			}
		}
	case *ast.ListExpr:
		for _, el := range ex.Elements {
			collectFnDeclsExpr(el, root, table)
		}
	case *ast.BinaryExpr:
		collectFnDeclsExpr(ex.Left, root, table)
		collectFnDeclsExpr(ex.Right, root, table)
	case *ast.UnaryExpr:
		collectFnDeclsExpr(ex.Operand, root, table)
	case *ast.AssertExpr:
		collectFnDeclsExpr(ex.That, root, table)
		collectFnDeclsExpr(ex.Msg, root, table)
	case *ast.CheckExpr:
		collectFnDeclsExpr(ex.That, root, table)
		collectFnDeclsExpr(ex.Msg, root, table)
	case *ast.CallExpr:
		collectFnDeclsExpr(ex.Args, root, table)
	case *ast.DoExpr:
		collectFnDeclsExpr(ex.Args, root, table)
	case *ast.FnCallExpr:
		collectFnDeclsExpr(ex.Args, root, table)
	}
}
