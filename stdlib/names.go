// Package stdlib implements A0's required standard function library:
// small, pure, synchronous functions dispatched by name from
// FnCallExpr. Grounded on the teacher's pkgs/stdlib decorator registry
// (name -> implementation, looked up once at call time) but re-cast as
// plain functions operating on value.Value instead of decorator nodes.
package stdlib

// Names is the fixed required stdlib set named in spec §4.C10. The
// validator uses it (alongside user fn declarations) to resolve
// FnCallExpr targets; the evaluator uses the Registry built from the
// same set to dispatch calls.
var Names = []string{
	"eq", "not", "and", "or", "coalesce", "typeof", "len",
	"append", "concat", "sort", "filter", "find", "range", "join",
	"unique", "pluck", "flat", "get", "put", "patch", "parse.json",
	"keys", "values", "merge", "entries",
	"math.max", "math.min",
	"str.concat", "str.split", "str.starts", "str.ends", "str.replace", "str.template",
	"map", "reduce", "contains",
}

// higherOrder is the subset of Names that the evaluator implements
// directly (they iterate and must charge the iteration budget), rather
// than dispatching to a pure Registry entry.
var higherOrder = map[string]bool{
	"map":    true,
	"reduce": true,
	"filter": true,
}

// IsHigherOrder reports whether name must be evaluated by the
// evaluator itself instead of through the pure Registry.
func IsHigherOrder(name string) bool { return higherOrder[name] }

// Known reports whether name is a member of the required stdlib set.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
