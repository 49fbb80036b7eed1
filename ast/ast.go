// Package ast defines the A0 abstract syntax tree produced by the
// parser, consumed by the validator, evaluator and formatter. Shaped
// after the teacher's core/ast.Node (a small interface plus one struct
// per node kind), trimmed of the LSP-oriented concrete-syntax-tree
// fields (TokenRange, SemanticTokens) that A0 has no use for.
package ast

import "strings"

// Span is a 1-based source span, present on every node when known.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Node is implemented by every AST node.
type Node interface {
	Span() Span
}

// Program is the root of an A0 program: optional headers followed by a
// statement sequence that must end in a ReturnStmt.
type Program struct {
	CapDecls    []*CapDecl
	BudgetDecls []*BudgetDecl
	Imports     []*ImportDecl
	Statements  []Statement
	Pos         Span
}

func (p *Program) Span() Span { return p.Pos }

// CapDecl is the `cap { ... }` header.
type CapDecl struct {
	Entries []CapEntry
	Pos     Span
}

func (c *CapDecl) Span() Span { return c.Pos }

// CapEntry is one `name: true` pair inside `cap { ... }`. ValueOK is
// false when the value wasn't a literal `true` (E_CAP_VALUE/E_AST).
type CapEntry struct {
	Name    string
	ValueOK bool
	Pos     Span
}

// BudgetDecl is the `budget { ... }` header.
type BudgetDecl struct {
	Fields []BudgetField
	Pos    Span
}

func (b *BudgetDecl) Span() Span { return b.Pos }

// BudgetField is one `name: literal` pair inside `budget { ... }`.
// LiteralOK is false when the value wasn't an integer or float literal
// (E_AST/E_UNKNOWN_BUDGET is the validator's concern, not the parser's).
type BudgetField struct {
	Name      string
	Value     float64
	LiteralOK bool
	Pos       Span
}

// ImportDecl is a (rejected) `import` header.
type ImportDecl struct {
	Pos Span
}

func (i *ImportDecl) Span() Span { return i.Pos }

// Statement is implemented by every statement kind.
type Statement interface {
	Node
	isStatement()
}

// LetStmt is `let NAME = EXPR`.
type LetStmt struct {
	Name  string
	Value Expr
	Pos   Span
}

func (s *LetStmt) Span() Span  { return s.Pos }
func (s *LetStmt) isStatement() {}

// ExprStmt is `EXPR` optionally followed by `-> path.to.name`.
// ArrowTarget is nil when there is no arrow tail.
type ExprStmt struct {
	Expr        Expr
	ArrowTarget []string
	Pos         Span
}

func (s *ExprStmt) Span() Span  { return s.Pos }
func (s *ExprStmt) isStatement() {}

// FnDecl is `fn NAME { PARAMS } { BODY }`.
type FnDecl struct {
	Name   string
	Params []string
	Body   []Statement
	Pos    Span
}

func (s *FnDecl) Span() Span  { return s.Pos }
func (s *FnDecl) isStatement() {}

// ReturnStmt is `return EXPR`.
type ReturnStmt struct {
	Expr Expr
	Pos  Span
}

func (s *ReturnStmt) Span() Span  { return s.Pos }
func (s *ReturnStmt) isStatement() {}

// Expr is implemented by every expression kind.
type Expr interface {
	Node
	isExpr()
}

// IntLiteral is an integer literal.
type IntLiteral struct {
	Value int64
	Pos   Span
}

func (e *IntLiteral) Span() Span { return e.Pos }
func (e *IntLiteral) isExpr()    {}

// FloatLiteral is a floating point literal.
type FloatLiteral struct {
	Value float64
	Pos   Span
}

func (e *FloatLiteral) Span() Span { return e.Pos }
func (e *FloatLiteral) isExpr()    {}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	Value bool
	Pos   Span
}

func (e *BoolLiteral) Span() Span { return e.Pos }
func (e *BoolLiteral) isExpr()    {}

// NullLiteral is `null`.
type NullLiteral struct {
	Pos Span
}

func (e *NullLiteral) Span() Span { return e.Pos }
func (e *NullLiteral) isExpr()    {}

// StringLiteral is a quoted string literal with escapes already decoded.
type StringLiteral struct {
	Value string
	Pos   Span
}

func (e *StringLiteral) Span() Span { return e.Pos }
func (e *StringLiteral) isExpr()    {}

// IdentPath is a bound name followed by zero or more dotted field
// accesses: `name.a.b`.
type IdentPath struct {
	Parts []string
	Pos   Span
}

func (e *IdentPath) Span() Span { return e.Pos }
func (e *IdentPath) isExpr()    {}

// Joined renders a dotted path as "a.b.c".
func Joined(parts []string) string { return strings.Join(parts, ".") }

// RecordEntry is implemented by Pair and Spread.
type RecordEntry interface {
	Node
	isRecordEntry()
}

// Pair is `key: value` inside a record literal.
type Pair struct {
	Key   string
	Value Expr
	Pos   Span
}

func (p *Pair) Span() Span     { return p.Pos }
func (p *Pair) isRecordEntry() {}

// Spread is `...expr` inside a record literal.
type Spread struct {
	Expr Expr
	Pos  Span
}

func (s *Spread) Span() Span     { return s.Pos }
func (s *Spread) isRecordEntry() {}

// RecordExpr is a `{ ... }` record literal.
type RecordExpr struct {
	Entries []RecordEntry
	Pos     Span
}

func (e *RecordExpr) Span() Span { return e.Pos }
func (e *RecordExpr) isExpr()    {}

// ListExpr is a `[ ... ]` list literal.
type ListExpr struct {
	Elements []Expr
	Pos      Span
}

func (e *ListExpr) Span() Span { return e.Pos }
func (e *ListExpr) isExpr()    {}

// BinaryExpr is `left OP right`.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Span
}

func (e *BinaryExpr) Span() Span { return e.Pos }
func (e *BinaryExpr) isExpr()    {}

// UnaryExpr is `-operand`.
type UnaryExpr struct {
	Op      string
	Operand Expr
	Pos     Span
}

func (e *UnaryExpr) Span() Span { return e.Pos }
func (e *UnaryExpr) isExpr()    {}

// IfRecordExpr is `if { cond: E, then: E, else: E }`.
type IfRecordExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Pos  Span
}

func (e *IfRecordExpr) Span() Span { return e.Pos }
func (e *IfRecordExpr) isExpr()    {}

// IfBlockExpr is `if (E) { BODY } [else { BODY }]`.
type IfBlockExpr struct {
	Cond     Expr
	Then     []Statement
	Else     []Statement // nil when no else branch
	HasElse  bool
	Pos      Span
}

func (e *IfBlockExpr) Span() Span { return e.Pos }
func (e *IfBlockExpr) isExpr()    {}

// ForExpr is `for { in: E, as: "name" } { BODY }`.
type ForExpr struct {
	List    Expr
	Binding string
	Body    []Statement
	Pos     Span
}

func (e *ForExpr) Span() Span { return e.Pos }
func (e *ForExpr) isExpr()    {}

// FilterBlockExpr is `filter { in: E, as: "name" } { BODY }`.
type FilterBlockExpr struct {
	List    Expr
	Binding string
	Body    []Statement
	Pos     Span
}

func (e *FilterBlockExpr) Span() Span { return e.Pos }
func (e *FilterBlockExpr) isExpr()    {}

// LoopExpr is `loop { in: E?, times: E?, as: "name" } { BODY }`.
type LoopExpr struct {
	Init    Expr // nil -> default null
	Times   Expr // nil -> default 1
	Binding string
	Body    []Statement
	Pos     Span
}

func (e *LoopExpr) Span() Span { return e.Pos }
func (e *LoopExpr) isExpr()    {}

// MatchArm is one `ok { name } { BODY }` or `err { name } { BODY }` arm.
type MatchArm struct {
	Binding string
	Body    []Statement
	Pos     Span
}

// MatchExpr is `match SUBJECT { ok {...} err {...} }`; either arm may
// be absent (nil).
type MatchExpr struct {
	Subject Expr
	OkArm   *MatchArm
	ErrArm  *MatchArm
	Pos     Span
}

func (e *MatchExpr) Span() Span { return e.Pos }
func (e *MatchExpr) isExpr()    {}

// TryExpr is `try { BODY } catch { name } { BODY }`.
type TryExpr struct {
	TryBody      []Statement
	CatchBinding string
	CatchBody    []Statement
	Pos          Span
}

func (e *TryExpr) Span() Span { return e.Pos }
func (e *TryExpr) isExpr()    {}

// AssertExpr is `assert { that: E, msg: E }`.
type AssertExpr struct {
	That Expr
	Msg  Expr
	Pos  Span
}

func (e *AssertExpr) Span() Span { return e.Pos }
func (e *AssertExpr) isExpr()    {}

// CheckExpr is `check { that: E, msg: E }`.
type CheckExpr struct {
	That Expr
	Msg  Expr
	Pos  Span
}

func (e *CheckExpr) Span() Span { return e.Pos }
func (e *CheckExpr) isExpr()    {}

// CallExpr is `call? tool.path { ARGS }` (read-mode tool invocation).
type CallExpr struct {
	ToolPath []string
	Args     *RecordExpr
	Pos      Span
}

func (e *CallExpr) Span() Span { return e.Pos }
func (e *CallExpr) isExpr()    {}

// DoExpr is `do tool.path { ARGS }` (effect-mode tool invocation).
type DoExpr struct {
	ToolPath []string
	Args     *RecordExpr
	Pos      Span
}

func (e *DoExpr) Span() Span { return e.Pos }
func (e *DoExpr) isExpr()    {}

// FnCallExpr is `name.path { ARGS }`, resolved to a stdlib function or
// a user `fn` by the validator.
type FnCallExpr struct {
	NamePath []string
	Args     *RecordExpr
	Pos      Span
}

func (e *FnCallExpr) Span() Span { return e.Pos }
func (e *FnCallExpr) isExpr()    {}
