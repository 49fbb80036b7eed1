// Package format renders an A0 AST back to canonical source text: a
// pure, runtime-free function sharing only the ast package. Grounded
// on the teacher's planfmt/formatter/text.go "one render function per
// node kind, strings.Builder, explicit newlines" approach, adapted
// from formatting an execution-plan tree to formatting A0 programs.
// Format is idempotent: parsing its output and formatting again
// produces byte-identical text.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ThomasRohde/Agent0-sub003/ast"
)

const indentUnit = "  "

// Format renders prog as canonical A0 source.
func Format(prog *ast.Program) string {
	var b strings.Builder
	for _, cd := range prog.CapDecls {
		writeCapDecl(&b, cd)
	}
	for _, bd := range prog.BudgetDecls {
		writeBudgetDecl(&b, bd)
	}
	writeStatements(&b, prog.Statements, 0)
	return b.String()
}

func indent(b *strings.Builder, level int) {
	b.WriteString(strings.Repeat(indentUnit, level))
}

func writeCapDecl(b *strings.Builder, cd *ast.CapDecl) {
	b.WriteString("cap {\n")
	for _, e := range cd.Entries {
		fmt.Fprintf(b, "%s%s: true\n", indentUnit, e.Name)
	}
	b.WriteString("}\n")
}

func writeBudgetDecl(b *strings.Builder, bd *ast.BudgetDecl) {
	b.WriteString("budget {\n")
	for _, f := range bd.Fields {
		fmt.Fprintf(b, "%s%s: %s\n", indentUnit, f.Name, formatNumber(f.Value))
	}
	b.WriteString("}\n")
}

func writeStatements(b *strings.Builder, stmts []ast.Statement, level int) {
	for _, s := range stmts {
		writeStatement(b, s, level)
	}
}

func writeStatement(b *strings.Builder, s ast.Statement, level int) {
	indent(b, level)
	switch st := s.(type) {
	case *ast.LetStmt:
		fmt.Fprintf(b, "let %s = %s\n", st.Name, renderExpr(st.Value, level))
	case *ast.ExprStmt:
		b.WriteString(renderExpr(st.Expr, level))
		if len(st.ArrowTarget) > 0 {
			fmt.Fprintf(b, " -> %s", strings.Join(st.ArrowTarget, "."))
		}
		b.WriteString("\n")
	case *ast.FnDecl:
		fmt.Fprintf(b, "fn %s { %s } {\n", st.Name, strings.Join(st.Params, ", "))
		writeStatements(b, st.Body, level+1)
		indent(b, level)
		b.WriteString("}\n")
	case *ast.ReturnStmt:
		fmt.Fprintf(b, "return %s\n", renderExpr(st.Expr, level))
	default:
		fmt.Fprintf(b, "/* unknown statement %T */\n", s)
	}
}

// renderExpr renders e as it would appear at the given indentation
// level; block-bearing expressions open their first brace inline and
// close it at level.
func renderExpr(e ast.Expr, level int) string {
	switch x := e.(type) {
	case *ast.IntLiteral:
		return strconv.FormatInt(x.Value, 10)
	case *ast.FloatLiteral:
		return formatNumber(x.Value)
	case *ast.BoolLiteral:
		if x.Value {
			return "true"
		}
		return "false"
	case *ast.NullLiteral:
		return "null"
	case *ast.StringLiteral:
		return strconv.Quote(x.Value)
	case *ast.IdentPath:
		return strings.Join(x.Parts, ".")
	case *ast.RecordExpr:
		return renderRecord(x, level)
	case *ast.ListExpr:
		return renderList(x, level)
	case *ast.BinaryExpr:
		p := binaryPrec[x.Op]
		return fmt.Sprintf("%s %s %s", renderOperand(x.Left, p, level), x.Op, renderOperand(x.Right, p+1, level))
	case *ast.UnaryExpr:
		return x.Op + renderOperand(x.Operand, 3, level)
	case *ast.IfRecordExpr:
		return renderIfRecord(x, level)
	case *ast.IfBlockExpr:
		return renderIfBlock(x, level)
	case *ast.ForExpr:
		return renderLoopLike(level, "for", headerPairs{{"in", renderExpr(x.List, level)}, {"as", strconv.Quote(x.Binding)}}, x.Body)
	case *ast.FilterBlockExpr:
		return renderLoopLike(level, "filter", headerPairs{{"in", renderExpr(x.List, level)}, {"as", strconv.Quote(x.Binding)}}, x.Body)
	case *ast.LoopExpr:
		h := headerPairs{}
		if x.Init != nil {
			h = append(h, kv{"in", renderExpr(x.Init, level)})
		}
		if x.Times != nil {
			h = append(h, kv{"times", renderExpr(x.Times, level)})
		}
		h = append(h, kv{"as", strconv.Quote(x.Binding)})
		return renderLoopLike(level, "loop", h, x.Body)
	case *ast.MatchExpr:
		return renderMatch(x, level)
	case *ast.TryExpr:
		return renderTry(x, level)
	case *ast.AssertExpr:
		return renderAssertCheck("assert", x.That, x.Msg, level)
	case *ast.CheckExpr:
		return renderAssertCheck("check", x.That, x.Msg, level)
	case *ast.CallExpr:
		return "call? " + strings.Join(x.ToolPath, ".") + " " + renderRecord(x.Args, level)
	case *ast.DoExpr:
		return "do " + strings.Join(x.ToolPath, ".") + " " + renderRecord(x.Args, level)
	case *ast.FnCallExpr:
		return strings.Join(x.NamePath, ".") + " " + renderRecord(x.Args, level)
	default:
		return fmt.Sprintf("/* unknown expr %T */", e)
	}
}

// binaryPrec ranks binary operators as the parser nests them
// (comparisons, absent here, rank 0); every level is left-associative.
var binaryPrec = map[string]int{"*": 2, "/": 2, "%": 2, "+": 1, "-": 1}

// renderOperand parenthesizes a binary operand ranked below min, so the
// output re-parses with the same grouping.
func renderOperand(e ast.Expr, min, level int) string {
	if b, ok := e.(*ast.BinaryExpr); ok && binaryPrec[b.Op] < min {
		return "(" + renderExpr(e, level) + ")"
	}
	return renderExpr(e, level)
}

type kv struct{ key, rendered string }
type headerPairs []kv

func renderHeader(h headerPairs) string {
	parts := make([]string, len(h))
	for i, p := range h {
		parts[i] = p.key + ": " + p.rendered
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func renderRecord(r *ast.RecordExpr, level int) string {
	if len(r.Entries) == 0 {
		return "{}"
	}
	parts := make([]string, len(r.Entries))
	for i, entry := range r.Entries {
		switch e := entry.(type) {
		case *ast.Pair:
			parts[i] = e.Key + ": " + renderExpr(e.Value, level)
		case *ast.Spread:
			parts[i] = "..." + renderExpr(e.Expr, level)
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func renderList(l *ast.ListExpr, level int) string {
	parts := make([]string, len(l.Elements))
	for i, el := range l.Elements {
		parts[i] = renderExpr(el, level)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func renderIfRecord(x *ast.IfRecordExpr, level int) string {
	return fmt.Sprintf("if { cond: %s, then: %s, else: %s }",
		renderExpr(x.Cond, level), renderExpr(x.Then, level), renderExpr(x.Else, level))
}

func renderIfBlock(x *ast.IfBlockExpr, level int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "if (%s) {\n", renderExpr(x.Cond, level))
	writeStatements(&b, x.Then, level+1)
	indent(&b, level)
	b.WriteString("}")
	if x.HasElse {
		b.WriteString(" else {\n")
		writeStatements(&b, x.Else, level+1)
		indent(&b, level)
		b.WriteString("}")
	}
	return b.String()
}

func renderLoopLike(level int, kw string, header headerPairs, body []ast.Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s {\n", kw, renderHeader(header))
	writeStatements(&b, body, level+1)
	indent(&b, level)
	b.WriteString("}")
	return b.String()
}

func renderMatch(x *ast.MatchExpr, level int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "match (%s) {\n", renderExpr(x.Subject, level))
	if x.OkArm != nil {
		indent(&b, level+1)
		fmt.Fprintf(&b, "ok { %s } {\n", x.OkArm.Binding)
		writeStatements(&b, x.OkArm.Body, level+2)
		indent(&b, level+1)
		b.WriteString("}\n")
	}
	if x.ErrArm != nil {
		indent(&b, level+1)
		fmt.Fprintf(&b, "err { %s } {\n", x.ErrArm.Binding)
		writeStatements(&b, x.ErrArm.Body, level+2)
		indent(&b, level+1)
		b.WriteString("}\n")
	}
	indent(&b, level)
	b.WriteString("}")
	return b.String()
}

func renderTry(x *ast.TryExpr, level int) string {
	var b strings.Builder
	b.WriteString("try {\n")
	writeStatements(&b, x.TryBody, level+1)
	indent(&b, level)
	fmt.Fprintf(&b, "} catch { %s } {\n", x.CatchBinding)
	writeStatements(&b, x.CatchBody, level+1)
	indent(&b, level)
	b.WriteString("}")
	return b.String()
}

func renderAssertCheck(kw string, that, msg ast.Expr, level int) string {
	parts := []string{}
	if that != nil {
		parts = append(parts, "that: "+renderExpr(that, level))
	}
	if msg != nil {
		parts = append(parts, "msg: "+renderExpr(msg, level))
	}
	return kw + " { " + strings.Join(parts, ", ") + " }"
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
