package stdlib

import (
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

func rec(entries ...value.Entry) value.Value { return value.NewRecord(entries) }

func newTestRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	if err := Install(reg); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	return reg
}

func TestInstallRegistersEveryPureFunction(t *testing.T) {
	reg := newTestRegistry(t)
	for _, name := range Names {
		if IsHigherOrder(name) {
			continue
		}
		if _, ok := reg.Stdlib(name); !ok {
			t.Fatalf("expected %q registered in stdlib registry", name)
		}
	}
}

func TestEqAndNot(t *testing.T) {
	out, err := fnEq(rec(value.Entry{Key: "a", Value: value.NewNumber(1)}, value.Entry{Key: "b", Value: value.NewNumber(1)}))
	if err != nil || !out.AsBool() {
		t.Fatalf("expected eq true, got %v err %v", out, err)
	}
	out, err = fnNot(rec(value.Entry{Key: "value", Value: value.NewBool(false)}))
	if err != nil || !out.AsBool() {
		t.Fatalf("expected not(false) == true, got %v err %v", out, err)
	}
}

func TestCoalescePicksFirstNonNull(t *testing.T) {
	items := value.NewList([]value.Value{value.NewNull(), value.NewNull(), value.NewString("x")})
	out, err := fnCoalesce(rec(value.Entry{Key: "items", Value: items}))
	if err != nil || out.AsString() != "x" {
		t.Fatalf("expected coalesce to pick 'x', got %v err %v", out, err)
	}
}

func TestSortByKey(t *testing.T) {
	list := value.NewList([]value.Value{
		rec(value.Entry{Key: "n", Value: value.NewNumber(3)}),
		rec(value.Entry{Key: "n", Value: value.NewNumber(1)}),
		rec(value.Entry{Key: "n", Value: value.NewNumber(2)}),
	})
	out, err := fnSort(rec(value.Entry{Key: "list", Value: list}, value.Entry{Key: "key", Value: value.NewString("n")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := out.AsList()
	first, _ := items[0].Get("n")
	last, _ := items[2].Get("n")
	if first.AsNumber() != 1 || last.AsNumber() != 3 {
		t.Fatalf("expected sorted by key n, got %v", out)
	}
}

func TestFindByKeyEquals(t *testing.T) {
	list := value.NewList([]value.Value{
		rec(value.Entry{Key: "id", Value: value.NewString("a")}),
		rec(value.Entry{Key: "id", Value: value.NewString("b")}),
	})
	out, err := fnFind(rec(
		value.Entry{Key: "list", Value: list},
		value.Entry{Key: "key", Value: value.NewString("id")},
		value.Entry{Key: "equals", Value: value.NewString("b")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, _ := out.Get("id")
	if id.AsString() != "b" {
		t.Fatalf("expected to find record with id 'b', got %v", out)
	}
}

func TestGetPutDottedPathsWithIndices(t *testing.T) {
	doc := rec(value.Entry{Key: "a", Value: value.NewList([]value.Value{
		rec(value.Entry{Key: "b", Value: value.NewNumber(1)}),
		rec(value.Entry{Key: "b", Value: value.NewNumber(2)}),
	})})
	out, err := fnGet(rec(value.Entry{Key: "value", Value: doc}, value.Entry{Key: "path", Value: value.NewString("a[1].b")}))
	if err != nil || out.AsNumber() != 2 {
		t.Fatalf("expected get a[1].b == 2, got %v err %v", out, err)
	}
	updated, err := fnPut(rec(
		value.Entry{Key: "value", Value: doc},
		value.Entry{Key: "path", Value: value.NewString("a[1].b")},
		value.Entry{Key: "newValue", Value: value.NewNumber(99)},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	check, _ := fnGet(rec(value.Entry{Key: "value", Value: updated}, value.Entry{Key: "path", Value: value.NewString("a[1].b")}))
	if check.AsNumber() != 99 {
		t.Fatalf("expected updated value 99, got %v", check)
	}
	// original document must be unmodified (immutability)
	orig, _ := fnGet(rec(value.Entry{Key: "value", Value: doc}, value.Entry{Key: "path", Value: value.NewString("a[1].b")}))
	if orig.AsNumber() != 2 {
		t.Fatalf("expected original document untouched, got %v", orig)
	}
}

func TestPatchAddRemoveReplace(t *testing.T) {
	doc := rec(value.Entry{Key: "items", Value: value.NewList([]value.Value{value.NewNumber(1), value.NewNumber(2)})})
	ops := value.NewList([]value.Value{
		rec(value.Entry{Key: "op", Value: value.NewString("add")}, value.Entry{Key: "path", Value: value.NewString("items[2]")}, value.Entry{Key: "value", Value: value.NewNumber(3)}),
		rec(value.Entry{Key: "op", Value: value.NewString("replace")}, value.Entry{Key: "path", Value: value.NewString("items[0]")}, value.Entry{Key: "value", Value: value.NewNumber(100)}),
		rec(value.Entry{Key: "op", Value: value.NewString("remove")}, value.Entry{Key: "path", Value: value.NewString("items[1]")}),
	})
	out, err := fnPatch(rec(value.Entry{Key: "value", Value: doc}, value.Entry{Key: "ops", Value: ops}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := out.Get("items")
	list := items.AsList()
	if len(list) != 2 || list[0].AsNumber() != 100 || list[1].AsNumber() != 3 {
		t.Fatalf("unexpected patch result: %v", out)
	}
}

func TestPatchTestOpFailsOnMismatch(t *testing.T) {
	doc := rec(value.Entry{Key: "x", Value: value.NewNumber(1)})
	ops := value.NewList([]value.Value{
		rec(value.Entry{Key: "op", Value: value.NewString("test")}, value.Entry{Key: "path", Value: value.NewString("x")}, value.Entry{Key: "value", Value: value.NewNumber(2)}),
	})
	if _, err := fnPatch(rec(value.Entry{Key: "value", Value: doc}, value.Entry{Key: "ops", Value: ops})); err == nil {
		t.Fatal("expected test op mismatch to fail")
	}
}

func TestStrTemplateSubstitutesVars(t *testing.T) {
	vars := rec(value.Entry{Key: "name", Value: value.NewString("world")})
	out, err := fnStrTemplate(rec(value.Entry{Key: "template", Value: value.NewString("hello {{name}}")}, value.Entry{Key: "vars", Value: vars}))
	if err != nil || out.AsString() != "hello world" {
		t.Fatalf("expected template substitution, got %v err %v", out, err)
	}
}

func TestContainsAcrossKinds(t *testing.T) {
	list := value.NewList([]value.Value{value.NewNumber(1), value.NewNumber(2)})
	out, err := fnContains(rec(value.Entry{Key: "in", Value: list}, value.Entry{Key: "value", Value: value.NewNumber(2)}))
	if err != nil || !out.AsBool() {
		t.Fatalf("expected list contains, got %v err %v", out, err)
	}
	out, err = fnContains(rec(value.Entry{Key: "in", Value: value.NewString("hello world")}, value.Entry{Key: "value", Value: value.NewString("wor")}))
	if err != nil || !out.AsBool() {
		t.Fatalf("expected substring contains, got %v err %v", out, err)
	}
}

func TestMergePreservesFirstInsertionOrder(t *testing.T) {
	a := rec(value.Entry{Key: "x", Value: value.NewNumber(1)}, value.Entry{Key: "y", Value: value.NewNumber(2)})
	b := rec(value.Entry{Key: "y", Value: value.NewNumber(20)}, value.Entry{Key: "z", Value: value.NewNumber(3)})
	out, err := fnMerge(rec(value.Entry{Key: "records", Value: value.NewList([]value.Value{a, b})}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Keys()[0] != "x" || out.Keys()[1] != "y" || out.Keys()[2] != "z" {
		t.Fatalf("expected key order x,y,z, got %v", out.Keys())
	}
	y, _ := out.Get("y")
	if y.AsNumber() != 20 {
		t.Fatalf("expected later record to win on conflict, got %v", y)
	}
}

func TestMathMaxMin(t *testing.T) {
	items := value.NewList([]value.Value{value.NewNumber(3), value.NewNumber(1), value.NewNumber(2)})
	max, err := fnMathMax(rec(value.Entry{Key: "items", Value: items}))
	if err != nil || max.AsNumber() != 3 {
		t.Fatalf("expected max 3, got %v err %v", max, err)
	}
	min, err := fnMathMin(rec(value.Entry{Key: "items", Value: items}))
	if err != nil || min.AsNumber() != 1 {
		t.Fatalf("expected min 1, got %v err %v", min, err)
	}
}

func TestParseJSONRoundTrip(t *testing.T) {
	out, err := fnParseJSON(rec(value.Entry{Key: "text", Value: value.NewString(`{"a": [1, 2, "x"]}`)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := out.Get("a")
	if !ok || len(a.AsList()) != 3 {
		t.Fatalf("expected parsed record with list field, got %v", out)
	}
}
