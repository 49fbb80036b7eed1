package evaluator

import "github.com/ThomasRohde/Agent0-sub003/value"

// Env is one scope in the evaluator's environment chain (spec §4.C9):
// a name-to-value map with a parent pointer. Child scopes are created
// at block entry (if/for/filter/loop/match/try bodies, fn calls). A
// fn call's scope is a child of the program's root Env (see fns.go),
// so a fn body sees neither the scope enclosing its declaration nor
// the caller's.
type Env struct {
	parent *Env
	vars   map[string]value.Value
}

// NewEnv creates a scope with the given parent (nil for the root).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: make(map[string]value.Value)}
}

// Child creates a new scope whose parent is the receiver.
func (e *Env) Child() *Env { return NewEnv(e) }

// Bind introduces or overwrites a name in this scope only. The
// validator has already rejected duplicate bindings within a scope;
// this is a plain map write.
func (e *Env) Bind(name string, v value.Value) { e.vars[name] = v }

// Resolve looks up name by walking the parent chain.
func (e *Env) Resolve(name string) (value.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}
