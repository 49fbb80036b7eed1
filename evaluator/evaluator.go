// Package evaluator implements A0's tree-walking evaluator (spec
// §4.C9): a single-threaded, cooperative walk of a validated Program
// that consults the policy gate once at run start, charges every
// construct against a budget.Accountant, emits trace.Emitter events in
// evaluation order, and dispatches call?/do to the tool registry and
// bare name calls to user fns or stdlib. Grounded on the teacher's
// evaluator package: explicit (value, *diagnostics.Diagnostic) returns
// instead of panics, matching spec §9's "do not use host panics for
// recoverable errors".
package evaluator

import (
	"context"
	"fmt"
	"math"

	"github.com/ThomasRohde/Agent0-sub003/ast"
	"github.com/ThomasRohde/Agent0-sub003/budget"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/policy"
	"github.com/ThomasRohde/Agent0-sub003/stdlib"
	"github.com/ThomasRohde/Agent0-sub003/trace"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

// Evidence is one assert/check record appended to the run (spec's
// glossary entry for "Evidence").
type Evidence struct {
	Kind string
	OK   bool
	Msg  value.Value
	Span diagnostics.Span
}

// Result is a run's outcome (spec §6 "Run result").
type Result struct {
	Value       value.Value
	Evidence    []Evidence
	CheckFailed bool
	Err         *diagnostics.Diagnostic
}

// Evaluator holds the mutable state of one run.
type Evaluator struct {
	registry    *plugin.Registry
	budget      *budget.Accountant
	emitter     *trace.Emitter
	fns         map[string]FnEntry
	evidence    []Evidence
	checkFailed bool
}

// runtimeCatchable is the set of error codes a try/catch may observe
// (spec §4.C9: "any of the E_* runtime codes... E_BUDGET is also
// catchable"; §7: assert unwinds as E_ASSERT and is catchable).
var runtimeCatchable = map[diagnostics.Code]bool{
	diagnostics.ETool:           true,
	diagnostics.EToolArgs:       true,
	diagnostics.EFn:             true,
	diagnostics.EBudget:         true,
	diagnostics.EPath:           true,
	diagnostics.EType:           true,
	diagnostics.EForNotList:     true,
	diagnostics.EMatchNotRecord: true,
	diagnostics.EMatchNoArm:     true,
	diagnostics.EIO:             true,
	diagnostics.ETrace:          true,
	diagnostics.EAssert:         true,
}

func spanOf(s ast.Span) diagnostics.Span {
	return diagnostics.Span{File: s.File, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}

// toPlain converts a Value into plain Go types suitable as trace data
// (map[string]any must survive a JSON/CBOR sink; value.Value itself
// has no marshaller).
func toPlain(v value.Value) any {
	switch v.Kind() {
	case value.Null:
		return nil
	case value.Bool:
		return v.AsBool()
	case value.Number:
		return v.AsNumber()
	case value.String:
		return v.AsString()
	case value.List:
		out := make([]any, len(v.AsList()))
		for i, e := range v.AsList() {
			out[i] = toPlain(e)
		}
		return out
	case value.Record:
		out := make(map[string]any, len(v.AsRecord()))
		for _, e := range v.AsRecord() {
			out[e.Key] = toPlain(e.Value)
		}
		return out
	default:
		return nil
	}
}

// truthyForFilter implements the spec's filter-predicate truthiness
// rule: a record result is judged by its first field (compatibility
// with `fn:` style predicates), everything else by ordinary truthiness.
func truthyForFilter(v value.Value) bool {
	if v.Kind() == value.Record {
		entries := v.AsRecord()
		if len(entries) > 0 {
			return entries[0].Value.Truthy()
		}
	}
	return v.Truthy()
}

// CheckPolicy implements the policy gate (spec §4.C6), consulted once
// before the first statement runs. It returns the first undeclared
// capability denial found, or nil if every declared capability is
// granted.
func CheckPolicy(prog *ast.Program, pol *policy.Policy) *diagnostics.Diagnostic {
	for _, cd := range prog.CapDecls {
		for _, entry := range cd.Entries {
			if !entry.ValueOK {
				continue
			}
			if !pol.Granted(entry.Name) {
				return diagnostics.New(diagnostics.ECapDenied, fmt.Sprintf("capability %q denied by policy", entry.Name)).
					WithSpan(spanOf(entry.Pos)).
					WithContext("capability", entry.Name)
			}
		}
	}
	return nil
}

// LimitsFromProgram reads a program's `budget { ... }` header (at most
// one, per the validator) into budget.Limits. A program with no
// budget header yields a zero Limits, meaning no limit is enforced.
func LimitsFromProgram(prog *ast.Program) budget.Limits {
	var limits budget.Limits
	if len(prog.BudgetDecls) == 0 {
		return limits
	}
	for _, f := range prog.BudgetDecls[0].Fields {
		if !f.LiteralOK {
			continue
		}
		switch f.Name {
		case "timeMs":
			limits.TimeMs, limits.HasTimeMs = int64(f.Value), true
		case "maxToolCalls":
			limits.MaxToolCalls, limits.HasMaxToolCalls = int64(f.Value), true
		case "maxBytesWritten":
			limits.MaxBytesWritten, limits.HasMaxBytesWritten = int64(f.Value), true
		case "maxIterations":
			limits.MaxIterations, limits.HasMaxIterations = int64(f.Value), true
		}
	}
	return limits
}

// Run evaluates a validated program to completion, charging limits
// against a fresh budget.Accountant and emitting trace events through
// sink (nil is a legal no-op sink).
func Run(prog *ast.Program, registry *plugin.Registry, limits budget.Limits, sink trace.Sink) *Result {
	runID, err := trace.NewRunID()
	if err != nil {
		return &Result{Err: diagnostics.New(diagnostics.ETrace, fmt.Sprintf("failed to derive run id: %v", err))}
	}
	emitter := trace.NewEmitter(runID, sink)
	acct := budget.New(context.Background(), limits)
	defer acct.Close()

	ev := &Evaluator{registry: registry, budget: acct, emitter: emitter, fns: make(map[string]FnEntry)}
	root := NewEnv(nil)
	collectFnDecls(prog.Statements, root, ev.fns)

	ev.emitter.Emit(trace.EventRunStart, nil, map[string]any{"runId": runID})
	v, derr := ev.evalBlock(prog.Statements, root)
	ev.emitter.Emit(trace.EventRunEnd, nil, map[string]any{"runId": runID})

	return &Result{Value: v, Evidence: ev.evidence, CheckFailed: ev.checkFailed, Err: derr}
}

func (ev *Evaluator) emitBudgetExceeded(d *diagnostics.Diagnostic, pos ast.Span) {
	sp := spanOf(pos)
	ev.emitter.Emit(trace.EventBudgetExceeded, &sp, map[string]any{"field": d.Context["field"]})
}

func (ev *Evaluator) recordEvidence(kind string, ok bool, msg value.Value, pos ast.Span) {
	sp := spanOf(pos)
	ev.evidence = append(ev.evidence, Evidence{Kind: kind, OK: ok, Msg: msg, Span: sp})
	ev.emitter.Emit(trace.EventEvidence, &sp, map[string]any{"kind": kind, "ok": ok, "msg": toPlain(msg)})
}

// evalBlock executes a statement sequence in env, charging the time
// budget before every statement and returning as soon as it reaches
// the trailing ReturnStmt the validator guarantees.
func (ev *Evaluator) evalBlock(stmts []ast.Statement, env *Env) (value.Value, *diagnostics.Diagnostic) {
	for _, st := range stmts {
		if d := ev.budget.CheckTime(); d != nil {
			ev.emitBudgetExceeded(d, st.Span())
			return value.Value{}, d
		}
		sp := spanOf(st.Span())
		ev.emitter.Emit(trace.EventStmtStart, &sp, nil)
		v, err := ev.execStatement(st, env)
		ev.emitter.Emit(trace.EventStmtEnd, &sp, nil)
		if err != nil {
			return value.Value{}, err
		}
		if _, ok := st.(*ast.ReturnStmt); ok {
			return v, nil
		}
	}
	return value.NewNull(), nil
}

func (ev *Evaluator) execStatement(st ast.Statement, env *Env) (value.Value, *diagnostics.Diagnostic) {
	switch s := st.(type) {
	case *ast.LetStmt:
		v, err := ev.evalExpr(s.Value, env)
		if err != nil {
			return value.Value{}, err
		}
		env.Bind(s.Name, v)
		return value.Value{}, nil
	case *ast.ExprStmt:
		v, err := ev.evalExpr(s.Expr, env)
		if err != nil {
			return value.Value{}, err
		}
		if len(s.ArrowTarget) > 0 {
			ev.bindArrowTarget(s.ArrowTarget, v, env)
		}
		return value.Value{}, nil
	case *ast.FnDecl:
		return value.Value{}, nil
	case *ast.ReturnStmt:
		return ev.evalExpr(s.Expr, env)
	default:
		return value.Value{}, diagnostics.New(diagnostics.EAST, fmt.Sprintf("unhandled statement node %T", st))
	}
}

// bindArrowTarget implements `-> a.b.c`: the innermost segments are
// nested into a record around the evaluated value and the whole
// structure is bound to the first segment (spec §4.C4).
func (ev *Evaluator) bindArrowTarget(parts []string, v value.Value, env *Env) {
	wrapped := v
	for i := len(parts) - 1; i > 0; i-- {
		wrapped = value.NewRecord([]value.Entry{{Key: parts[i], Value: wrapped}})
	}
	env.Bind(parts[0], wrapped)
}

func (ev *Evaluator) evalOrNull(e ast.Expr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	if e == nil {
		return value.NewNull(), nil
	}
	return ev.evalExpr(e, env)
}

func (ev *Evaluator) evalExpr(e ast.Expr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	switch x := e.(type) {
	case *ast.IntLiteral:
		return value.NewNumber(float64(x.Value)), nil
	case *ast.FloatLiteral:
		return value.NewNumber(x.Value), nil
	case *ast.BoolLiteral:
		return value.NewBool(x.Value), nil
	case *ast.NullLiteral:
		return value.NewNull(), nil
	case *ast.StringLiteral:
		return value.NewString(x.Value), nil
	case *ast.IdentPath:
		return ev.evalIdentPath(x, env)
	case *ast.RecordExpr:
		return ev.evalRecord(x, env)
	case *ast.ListExpr:
		return ev.evalList(x, env)
	case *ast.BinaryExpr:
		return ev.evalBinary(x, env)
	case *ast.UnaryExpr:
		return ev.evalUnary(x, env)
	case *ast.IfRecordExpr:
		return ev.evalIfRecord(x, env)
	case *ast.IfBlockExpr:
		return ev.evalIfBlock(x, env)
	case *ast.ForExpr:
		return ev.evalFor(x, env)
	case *ast.FilterBlockExpr:
		return ev.evalFilterBlock(x, env)
	case *ast.LoopExpr:
		return ev.evalLoop(x, env)
	case *ast.MatchExpr:
		return ev.evalMatch(x, env)
	case *ast.TryExpr:
		return ev.evalTry(x, env)
	case *ast.AssertExpr:
		return ev.evalAssert(x, env)
	case *ast.CheckExpr:
		return ev.evalCheck(x, env)
	case *ast.CallExpr:
		return ev.evalTool(x.ToolPath, x.Args, true, x.Pos, env)
	case *ast.DoExpr:
		return ev.evalTool(x.ToolPath, x.Args, false, x.Pos, env)
	case *ast.FnCallExpr:
		return ev.evalFnCall(x, env)
	default:
		return value.Value{}, diagnostics.New(diagnostics.EAST, fmt.Sprintf("unhandled expression node %T", e))
	}
}

func (ev *Evaluator) evalIdentPath(e *ast.IdentPath, env *Env) (value.Value, *diagnostics.Diagnostic) {
	cur, ok := env.Resolve(e.Parts[0])
	if !ok {
		return value.Value{}, diagnostics.New(diagnostics.EUnbound, fmt.Sprintf("unbound name %q", e.Parts[0])).WithSpan(spanOf(e.Pos))
	}
	for _, part := range e.Parts[1:] {
		if cur.Kind() != value.Record {
			return value.Value{}, diagnostics.New(diagnostics.EPath, fmt.Sprintf("cannot access field %q on a %s", part, cur.TypeName())).WithSpan(spanOf(e.Pos))
		}
		fv, ok := cur.Get(part)
		if !ok {
			return value.Value{}, diagnostics.New(diagnostics.EPath, fmt.Sprintf("no field %q", part)).WithSpan(spanOf(e.Pos))
		}
		cur = fv
	}
	return cur, nil
}

func (ev *Evaluator) evalRecord(e *ast.RecordExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	var entries []value.Entry
	for _, re := range e.Entries {
		switch x := re.(type) {
		case *ast.Pair:
			v, err := ev.evalExpr(x.Value, env)
			if err != nil {
				return value.Value{}, err
			}
			entries = append(entries, value.Entry{Key: x.Key, Value: v})
		case *ast.Spread:
			v, err := ev.evalExpr(x.Expr, env)
			if err != nil {
				return value.Value{}, err
			}
			if v.Kind() != value.Record {
				return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("spread target must be a record, got %s", v.TypeName())).WithSpan(spanOf(x.Pos))
			}
			entries = append(entries, v.AsRecord()...)
		}
	}
	return value.NewRecord(entries), nil
}

func (ev *Evaluator) evalList(e *ast.ListExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	out := make([]value.Value, 0, len(e.Elements))
	for _, el := range e.Elements {
		v, err := ev.evalExpr(el, env)
		if err != nil {
			return value.Value{}, err
		}
		out = append(out, v)
	}
	return value.NewList(out), nil
}

func (ev *Evaluator) evalUnary(e *ast.UnaryExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	v, err := ev.evalExpr(e.Operand, env)
	if err != nil {
		return value.Value{}, err
	}
	if e.Op != "-" {
		return value.Value{}, diagnostics.New(diagnostics.EAST, fmt.Sprintf("unknown unary operator %q", e.Op)).WithSpan(spanOf(e.Pos))
	}
	if v.Kind() != value.Number {
		return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("unary '-' requires a number, got %s", v.TypeName())).WithSpan(spanOf(e.Pos))
	}
	return value.NewNumber(-v.AsNumber()), nil
}

func (ev *Evaluator) evalBinary(e *ast.BinaryExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	l, err := ev.evalExpr(e.Left, env)
	if err != nil {
		return value.Value{}, err
	}
	r, err := ev.evalExpr(e.Right, env)
	if err != nil {
		return value.Value{}, err
	}
	sp := spanOf(e.Pos)
	switch e.Op {
	case "+":
		if l.Kind() == value.Number && r.Kind() == value.Number {
			return value.NewNumber(l.AsNumber() + r.AsNumber()), nil
		}
		if l.Kind() == value.String && r.Kind() == value.String {
			return value.NewString(l.AsString() + r.AsString()), nil
		}
		return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("cannot add %s and %s", l.TypeName(), r.TypeName())).WithSpan(sp)
	case "-", "*", "/", "%":
		if l.Kind() != value.Number || r.Kind() != value.Number {
			return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("operator %q requires two numbers", e.Op)).WithSpan(sp)
		}
		a, b := l.AsNumber(), r.AsNumber()
		switch e.Op {
		case "-":
			return value.NewNumber(a - b), nil
		case "*":
			return value.NewNumber(a * b), nil
		case "/":
			if b == 0 {
				return value.Value{}, diagnostics.New(diagnostics.EType, "division/modulo by zero").WithSpan(sp)
			}
			return value.NewNumber(a / b), nil
		default: // "%"
			if b == 0 {
				return value.Value{}, diagnostics.New(diagnostics.EType, "division/modulo by zero").WithSpan(sp)
			}
			return value.NewNumber(math.Mod(a, b)), nil
		}
	case "==":
		return value.NewBool(value.Equal(l, r)), nil
	case "!=":
		return value.NewBool(!value.Equal(l, r)), nil
	case ">", "<", ">=", "<=":
		if l.Kind() == value.Number && r.Kind() == value.Number {
			return value.NewBool(compareNumbers(e.Op, l.AsNumber(), r.AsNumber())), nil
		}
		if l.Kind() == value.String && r.Kind() == value.String {
			return value.NewBool(compareStrings(e.Op, l.AsString(), r.AsString())), nil
		}
		return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("operator %q requires two numbers or two strings", e.Op)).WithSpan(sp)
	default:
		return value.Value{}, diagnostics.New(diagnostics.EAST, fmt.Sprintf("unknown operator %q", e.Op)).WithSpan(sp)
	}
}

func compareNumbers(op string, a, b float64) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	default:
		return a <= b
	}
}

func compareStrings(op string, a, b string) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	default:
		return a <= b
	}
}

func (ev *Evaluator) evalIfRecord(e *ast.IfRecordExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	cond, err := ev.evalExpr(e.Cond, env)
	if err != nil {
		return value.Value{}, err
	}
	if cond.Truthy() {
		return ev.evalExpr(e.Then, env)
	}
	return ev.evalExpr(e.Else, env)
}

func (ev *Evaluator) evalIfBlock(e *ast.IfBlockExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	cond, err := ev.evalExpr(e.Cond, env)
	if err != nil {
		return value.Value{}, err
	}
	if cond.Truthy() {
		return ev.evalBlock(e.Then, env.Child())
	}
	if e.HasElse {
		return ev.evalBlock(e.Else, env.Child())
	}
	return value.NewNull(), nil
}

func (ev *Evaluator) evalFor(e *ast.ForExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	listV, err := ev.evalExpr(e.List, env)
	if err != nil {
		return value.Value{}, err
	}
	if listV.Kind() != value.List {
		return value.Value{}, diagnostics.New(diagnostics.EForNotList, fmt.Sprintf("for: 'in' must be a list, got %s", listV.TypeName())).WithSpan(spanOf(e.Pos))
	}
	sp := spanOf(e.Pos)
	ev.emitter.Emit(trace.EventForStart, &sp, nil)
	out := make([]value.Value, 0, len(listV.AsList()))
	for _, item := range listV.AsList() {
		if d := ev.budget.CheckIteration(); d != nil {
			ev.emitBudgetExceeded(d, e.Pos)
			return value.Value{}, d
		}
		child := env.Child()
		child.Bind(e.Binding, item)
		v, derr := ev.evalBlock(e.Body, child)
		if derr != nil {
			return value.Value{}, derr
		}
		out = append(out, v)
	}
	ev.emitter.Emit(trace.EventForEnd, &sp, nil)
	return value.NewList(out), nil
}

func (ev *Evaluator) evalFilterBlock(e *ast.FilterBlockExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	listV, err := ev.evalExpr(e.List, env)
	if err != nil {
		return value.Value{}, err
	}
	if listV.Kind() != value.List {
		return value.Value{}, diagnostics.New(diagnostics.EForNotList, fmt.Sprintf("filter: 'in' must be a list, got %s", listV.TypeName())).WithSpan(spanOf(e.Pos))
	}
	sp := spanOf(e.Pos)
	ev.emitter.Emit(trace.EventFilterStart, &sp, nil)
	out := make([]value.Value, 0, len(listV.AsList()))
	for _, item := range listV.AsList() {
		if d := ev.budget.CheckIteration(); d != nil {
			ev.emitBudgetExceeded(d, e.Pos)
			return value.Value{}, d
		}
		child := env.Child()
		child.Bind(e.Binding, item)
		v, derr := ev.evalBlock(e.Body, child)
		if derr != nil {
			return value.Value{}, derr
		}
		if truthyForFilter(v) {
			out = append(out, item)
		}
	}
	ev.emitter.Emit(trace.EventFilterEnd, &sp, nil)
	return value.NewList(out), nil
}

func (ev *Evaluator) evalLoop(e *ast.LoopExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	cur, err := ev.evalOrNull(e.Init, env)
	if err != nil {
		return value.Value{}, err
	}
	timesV := value.NewNumber(1)
	if e.Times != nil {
		timesV, err = ev.evalExpr(e.Times, env)
		if err != nil {
			return value.Value{}, err
		}
	}
	if timesV.Kind() != value.Number || !timesV.IsInteger() || timesV.AsNumber() < 0 {
		return value.Value{}, diagnostics.New(diagnostics.EType, "loop: 'times' must be a non-negative integer").WithSpan(spanOf(e.Pos))
	}
	n := int(timesV.AsNumber())
	if n == 0 {
		return cur, nil
	}
	sp := spanOf(e.Pos)
	ev.emitter.Emit(trace.EventLoopStart, &sp, nil)
	for i := 0; i < n; i++ {
		if d := ev.budget.CheckIteration(); d != nil {
			ev.emitBudgetExceeded(d, e.Pos)
			return value.Value{}, d
		}
		child := env.Child()
		child.Bind(e.Binding, cur)
		v, derr := ev.evalBlock(e.Body, child)
		if derr != nil {
			return value.Value{}, derr
		}
		cur = v
	}
	ev.emitter.Emit(trace.EventLoopEnd, &sp, nil)
	return cur, nil
}

func (ev *Evaluator) evalMatch(e *ast.MatchExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	subj, err := ev.evalExpr(e.Subject, env)
	if err != nil {
		return value.Value{}, err
	}
	if subj.Kind() != value.Record {
		return value.Value{}, diagnostics.New(diagnostics.EMatchNotRecord, fmt.Sprintf("match: subject must be a record, got %s", subj.TypeName())).WithSpan(spanOf(e.Pos))
	}
	sp := spanOf(e.Pos)
	ev.emitter.Emit(trace.EventMatchStart, &sp, nil)
	var result value.Value
	var derr *diagnostics.Diagnostic
	switch {
	case func() bool { _, ok := subj.Get("ok"); return ok }() && e.OkArm != nil:
		okV, _ := subj.Get("ok")
		child := env.Child()
		child.Bind(e.OkArm.Binding, okV)
		result, derr = ev.evalBlock(e.OkArm.Body, child)
	case func() bool { _, ok := subj.Get("err"); return ok }() && e.ErrArm != nil:
		errV, _ := subj.Get("err")
		child := env.Child()
		child.Bind(e.ErrArm.Binding, errV)
		result, derr = ev.evalBlock(e.ErrArm.Body, child)
	default:
		derr = diagnostics.New(diagnostics.EMatchNoArm, "match: no matching arm").WithSpan(spanOf(e.Pos))
	}
	ev.emitter.Emit(trace.EventMatchEnd, &sp, nil)
	return result, derr
}

func (ev *Evaluator) evalTry(e *ast.TryExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	sp := spanOf(e.Pos)
	ev.emitter.Emit(trace.EventTryStart, &sp, nil)
	v, derr := ev.evalBlock(e.TryBody, env.Child())
	if derr != nil && runtimeCatchable[derr.Code] {
		catchEnv := env.Child()
		catchEnv.Bind(e.CatchBinding, value.NewRecord([]value.Entry{
			{Key: "code", Value: value.NewString(string(derr.Code))},
			{Key: "message", Value: value.NewString(derr.Message)},
		}))
		v, derr = ev.evalBlock(e.CatchBody, catchEnv)
	}
	ev.emitter.Emit(trace.EventTryEnd, &sp, nil)
	return v, derr
}

func (ev *Evaluator) evalAssert(e *ast.AssertExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	thatV, err := ev.evalOrNull(e.That, env)
	if err != nil {
		return value.Value{}, err
	}
	msgV, err := ev.evalOrNull(e.Msg, env)
	if err != nil {
		return value.Value{}, err
	}
	ok := thatV.Truthy()
	ev.recordEvidence("assert", ok, msgV, e.Pos)
	if !ok {
		return value.Value{}, diagnostics.New(diagnostics.EAssert, messageText(msgV)).WithSpan(spanOf(e.Pos))
	}
	return value.NewRecord([]value.Entry{{Key: "ok", Value: value.NewBool(true)}}), nil
}

func (ev *Evaluator) evalCheck(e *ast.CheckExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	thatV, err := ev.evalOrNull(e.That, env)
	if err != nil {
		return value.Value{}, err
	}
	msgV, err := ev.evalOrNull(e.Msg, env)
	if err != nil {
		return value.Value{}, err
	}
	ok := thatV.Truthy()
	if !ok {
		ev.checkFailed = true
	}
	ev.recordEvidence("check", ok, msgV, e.Pos)
	return value.NewRecord([]value.Entry{{Key: "ok", Value: value.NewBool(ok)}}), nil
}

func messageText(v value.Value) string {
	if v.Kind() == value.String {
		return v.AsString()
	}
	return v.String()
}

func (ev *Evaluator) evalTool(toolPath []string, argsExpr *ast.RecordExpr, isRead bool, pos ast.Span, env *Env) (value.Value, *diagnostics.Diagnostic) {
	name := ast.Joined(toolPath)
	def, ok := ev.registry.Tool(name)
	if !ok {
		return value.Value{}, diagnostics.New(diagnostics.EUnknownTool, fmt.Sprintf("unknown tool %q", name)).WithSpan(spanOf(pos))
	}
	if isRead && def.Mode == plugin.ModeEffect {
		return value.Value{}, diagnostics.New(diagnostics.ECallEffect, fmt.Sprintf("tool %q is effect-mode; use do", name)).WithSpan(spanOf(pos))
	}
	argsVal, err := ev.evalRecord(argsExpr, env)
	if err != nil {
		return value.Value{}, err
	}
	if d := plugin.ValidateArgs(def, argsVal); d != nil {
		return value.Value{}, d
	}
	if d := ev.budget.CheckToolCall(); d != nil {
		ev.emitBudgetExceeded(d, pos)
		return value.Value{}, d
	}
	sp := spanOf(pos)
	ev.emitter.Emit(trace.EventToolStart, &sp, map[string]any{"tool": name})
	result, execErr := def.Execute(ev.budget.Context(), argsVal)
	ev.emitter.Emit(trace.EventToolEnd, &sp, map[string]any{"tool": name})
	if execErr != nil {
		return value.Value{}, diagnostics.New(diagnostics.ETool, execErr.Error()).WithSpan(sp).WithContext("tool", name)
	}
	ev.budget.IncrementToolCall()
	if result.Kind() == value.Record {
		if bytesV, ok := result.Get("bytes"); ok && bytesV.Kind() == value.Number {
			if d := ev.budget.AddBytesWritten(int64(bytesV.AsNumber())); d != nil {
				ev.emitBudgetExceeded(d, pos)
				return value.Value{}, d
			}
		}
	}
	return result, nil
}

func (ev *Evaluator) evalFnCall(e *ast.FnCallExpr, env *Env) (value.Value, *diagnostics.Diagnostic) {
	name := ast.Joined(e.NamePath)
	argsVal, err := ev.evalRecord(e.Args, env)
	if err != nil {
		return value.Value{}, err
	}
	if entry, ok := ev.fns[name]; ok {
		return ev.callUserFn(entry, argsVal, e.Pos)
	}
	if stdlib.IsHigherOrder(name) {
		return ev.evalHigherOrder(name, argsVal, e.Pos)
	}
	fn, ok := ev.registry.Stdlib(name)
	if !ok {
		return value.Value{}, diagnostics.New(diagnostics.EUnknownFn, fmt.Sprintf("unknown function %q", name)).WithSpan(spanOf(e.Pos))
	}
	result, callErr := fn.Execute(argsVal)
	if callErr != nil {
		return value.Value{}, diagnostics.New(diagnostics.EFn, callErr.Error()).WithSpan(spanOf(e.Pos)).WithContext("fn", name)
	}
	return result, nil
}

func (ev *Evaluator) callUserFn(entry FnEntry, args value.Value, pos ast.Span) (value.Value, *diagnostics.Diagnostic) {
	child := entry.DefScope.Child()
	for _, p := range entry.Decl.Params {
		v, ok := args.Get(p)
		if !ok {
			v = value.NewNull()
		}
		child.Bind(p, v)
	}
	return ev.runFnBody(entry, child, pos)
}

func (ev *Evaluator) runFnBody(entry FnEntry, child *Env, pos ast.Span) (value.Value, *diagnostics.Diagnostic) {
	sp := spanOf(pos)
	ev.emitter.Emit(trace.EventFnCallStart, &sp, map[string]any{"fn": entry.Decl.Name})
	v, derr := ev.evalBlock(entry.Decl.Body, child)
	ev.emitter.Emit(trace.EventFnCallEnd, &sp, map[string]any{"fn": entry.Decl.Name})
	return v, derr
}

func (ev *Evaluator) lookupFn(name string, pos ast.Span) (FnEntry, *diagnostics.Diagnostic) {
	entry, ok := ev.fns[name]
	if !ok {
		return FnEntry{}, diagnostics.New(diagnostics.EFn, fmt.Sprintf("unknown function %q", name)).WithSpan(spanOf(pos))
	}
	return entry, nil
}

func fnNameArg(args value.Value, field, caller string, pos ast.Span) (string, *diagnostics.Diagnostic) {
	v, ok := args.Get(field)
	if !ok || v.Kind() != value.String {
		return "", diagnostics.New(diagnostics.EFn, fmt.Sprintf("%s: %q must be a string naming a fn", caller, field)).WithSpan(spanOf(pos))
	}
	return v.AsString(), nil
}

// invokeDestructured runs entry's body once for map/filter(fn:) style
// calls, destructuring a single list element into the fn's parameters
// per spec §4.C9.
func (ev *Evaluator) invokeDestructured(entry FnEntry, elem value.Value, pos ast.Span) (value.Value, *diagnostics.Diagnostic) {
	child := entry.DefScope.Child()
	params := entry.Decl.Params
	switch {
	case len(params) == 1:
		child.Bind(params[0], elem)
	case len(params) > 1 && elem.Kind() == value.Record:
		for _, p := range params {
			v, ok := elem.Get(p)
			if !ok {
				v = value.NewNull()
			}
			child.Bind(p, v)
		}
	case len(params) > 1:
		for i, p := range params {
			if i == 0 {
				child.Bind(p, elem)
			} else {
				child.Bind(p, value.NewNull())
			}
		}
	}
	return ev.runFnBody(entry, child, pos)
}

// invokePositional binds args to params by position (reduce: param0 is
// the accumulator, param1 is the current element).
func (ev *Evaluator) invokePositional(entry FnEntry, args []value.Value, pos ast.Span) (value.Value, *diagnostics.Diagnostic) {
	child := entry.DefScope.Child()
	for i, p := range entry.Decl.Params {
		if i < len(args) {
			child.Bind(p, args[i])
		} else {
			child.Bind(p, value.NewNull())
		}
	}
	return ev.runFnBody(entry, child, pos)
}

func (ev *Evaluator) evalHigherOrder(name string, args value.Value, pos ast.Span) (value.Value, *diagnostics.Diagnostic) {
	listV, ok := args.Get("list")
	if !ok || listV.Kind() != value.List {
		return value.Value{}, diagnostics.New(diagnostics.EType, fmt.Sprintf("%s: 'list' must be a list", name)).WithSpan(spanOf(pos))
	}
	items := listV.AsList()
	sp := spanOf(pos)
	switch name {
	case "map":
		fnName, derr := fnNameArg(args, "fn", name, pos)
		if derr != nil {
			return value.Value{}, derr
		}
		entry, derr := ev.lookupFn(fnName, pos)
		if derr != nil {
			return value.Value{}, derr
		}
		ev.emitter.Emit(trace.EventMapStart, &sp, nil)
		out := make([]value.Value, 0, len(items))
		for _, item := range items {
			if d := ev.budget.CheckIteration(); d != nil {
				ev.emitBudgetExceeded(d, pos)
				return value.Value{}, d
			}
			v, derr := ev.invokeDestructured(entry, item, pos)
			if derr != nil {
				return value.Value{}, derr
			}
			out = append(out, v)
		}
		ev.emitter.Emit(trace.EventMapEnd, &sp, nil)
		return value.NewList(out), nil
	case "reduce":
		fnName, derr := fnNameArg(args, "fn", name, pos)
		if derr != nil {
			return value.Value{}, derr
		}
		entry, derr := ev.lookupFn(fnName, pos)
		if derr != nil {
			return value.Value{}, derr
		}
		acc, ok := args.Get("init")
		if !ok {
			acc = value.NewNull()
		}
		ev.emitter.Emit(trace.EventReduceStart, &sp, nil)
		for _, item := range items {
			if d := ev.budget.CheckIteration(); d != nil {
				ev.emitBudgetExceeded(d, pos)
				return value.Value{}, d
			}
			v, derr := ev.invokePositional(entry, []value.Value{acc, item}, pos)
			if derr != nil {
				return value.Value{}, derr
			}
			acc = v
		}
		ev.emitter.Emit(trace.EventReduceEnd, &sp, nil)
		return acc, nil
	case "filter":
		ev.emitter.Emit(trace.EventFilterStart, &sp, nil)
		out := make([]value.Value, 0, len(items))
		if fnV, ok := args.Get("fn"); ok && fnV.Kind() == value.String {
			entry, derr := ev.lookupFn(fnV.AsString(), pos)
			if derr != nil {
				return value.Value{}, derr
			}
			for _, item := range items {
				if d := ev.budget.CheckIteration(); d != nil {
					ev.emitBudgetExceeded(d, pos)
					return value.Value{}, d
				}
				v, derr := ev.invokeDestructured(entry, item, pos)
				if derr != nil {
					return value.Value{}, derr
				}
				if truthyForFilter(v) {
					out = append(out, item)
				}
			}
		} else if byV, ok := args.Get("by"); ok && byV.Kind() == value.String {
			key := byV.AsString()
			for _, item := range items {
				if d := ev.budget.CheckIteration(); d != nil {
					ev.emitBudgetExceeded(d, pos)
					return value.Value{}, d
				}
				fv, _ := item.Get(key)
				if fv.Truthy() {
					out = append(out, item)
				}
			}
		} else {
			return value.Value{}, diagnostics.New(diagnostics.EFn, "filter: requires 'fn' or 'by'").WithSpan(spanOf(pos))
		}
		ev.emitter.Emit(trace.EventFilterEnd, &sp, nil)
		return value.NewList(out), nil
	default:
		return value.Value{}, diagnostics.New(diagnostics.EFn, fmt.Sprintf("unsupported higher-order function %q", name)).WithSpan(spanOf(pos))
	}
}
