package stdlib

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ThomasRohde/Agent0-sub003/plugin"
	"github.com/ThomasRohde/Agent0-sub003/value"
)

// argOrError fetches a required named argument field, erroring with
// the function's name in the message so E_FN diagnostics stay
// readable.
func argOrError(fn string, args value.Value, key string) (value.Value, error) {
	v, ok := args.Get(key)
	if !ok {
		return value.Value{}, fmt.Errorf("%s: missing required argument '%s'", fn, key)
	}
	return v, nil
}

func argOrDefault(args value.Value, key string, def value.Value) value.Value {
	if v, ok := args.Get(key); ok {
		return v
	}
	return def
}

// ---- equality, logic, misc ----

func fnEq(args value.Value) (value.Value, error) {
	a, err := argOrError("eq", args, "a")
	if err != nil {
		return value.Value{}, err
	}
	b, err := argOrError("eq", args, "b")
	if err != nil {
		return value.Value{}, err
	}
	return value.NewBool(value.Equal(a, b)), nil
}

func fnNot(args value.Value) (value.Value, error) {
	v, err := argOrError("not", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	return value.NewBool(!v.Truthy()), nil
}

func fnAnd(args value.Value) (value.Value, error) {
	items, err := argOrError("and", args, "items")
	if err != nil {
		return value.Value{}, err
	}
	if items.Kind() != value.List {
		return value.Value{}, fmt.Errorf("and: 'items' must be a list")
	}
	for _, it := range items.AsList() {
		if !it.Truthy() {
			return value.NewBool(false), nil
		}
	}
	return value.NewBool(true), nil
}

func fnOr(args value.Value) (value.Value, error) {
	items, err := argOrError("or", args, "items")
	if err != nil {
		return value.Value{}, err
	}
	if items.Kind() != value.List {
		return value.Value{}, fmt.Errorf("or: 'items' must be a list")
	}
	for _, it := range items.AsList() {
		if it.Truthy() {
			return value.NewBool(true), nil
		}
	}
	return value.NewBool(false), nil
}

func fnCoalesce(args value.Value) (value.Value, error) {
	items, err := argOrError("coalesce", args, "items")
	if err != nil {
		return value.Value{}, err
	}
	if items.Kind() != value.List {
		return value.Value{}, fmt.Errorf("coalesce: 'items' must be a list")
	}
	for _, it := range items.AsList() {
		if it.Kind() != value.Null {
			return it, nil
		}
	}
	return value.NewNull(), nil
}

func fnTypeof(args value.Value) (value.Value, error) {
	v, err := argOrError("typeof", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	return value.NewString(v.TypeName()), nil
}

func fnLen(args value.Value) (value.Value, error) {
	v, err := argOrError("len", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	n, ok := v.Len()
	if !ok {
		return value.Value{}, fmt.Errorf("len: value of type %s has no length", v.TypeName())
	}
	return value.NewNumber(float64(n)), nil
}

// ---- list operations ----

func fnAppend(args value.Value) (value.Value, error) {
	list, err := argOrError("append", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("append: 'list' must be a list")
	}
	item, err := argOrError("append", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	out := append(append([]value.Value{}, list.AsList()...), item)
	return value.NewList(out), nil
}

func fnConcat(args value.Value) (value.Value, error) {
	lists, err := argOrError("concat", args, "lists")
	if err != nil {
		return value.Value{}, err
	}
	if lists.Kind() != value.List {
		return value.Value{}, fmt.Errorf("concat: 'lists' must be a list of lists")
	}
	var out []value.Value
	for _, l := range lists.AsList() {
		if l.Kind() != value.List {
			return value.Value{}, fmt.Errorf("concat: every element of 'lists' must be a list")
		}
		out = append(out, l.AsList()...)
	}
	return value.NewList(out), nil
}

func fnSort(args value.Value) (value.Value, error) {
	list, err := argOrError("sort", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("sort: 'list' must be a list")
	}
	key := ""
	if k, ok := args.Get("key"); ok && k.Kind() == value.String {
		key = k.AsString()
	}
	items := append([]value.Value{}, list.AsList()...)
	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if key != "" {
			af, _ := a.Get(key)
			bf, _ := b.Get(key)
			a, b = af, bf
		}
		less, lerr := lessValues(a, b)
		if lerr != nil {
			sortErr = lerr
		}
		return less
	})
	if sortErr != nil {
		return value.Value{}, sortErr
	}
	return value.NewList(items), nil
}

func lessValues(a, b value.Value) (bool, error) {
	if a.Kind() == value.Number && b.Kind() == value.Number {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.Kind() == value.String && b.Kind() == value.String {
		return a.AsString() < b.AsString(), nil
	}
	return false, fmt.Errorf("sort: cannot compare %s and %s", a.TypeName(), b.TypeName())
}

func fnFind(args value.Value) (value.Value, error) {
	list, err := argOrError("find", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("find: 'list' must be a list")
	}
	if key, ok := args.Get("key"); ok && key.Kind() == value.String {
		want, err := argOrError("find", args, "equals")
		if err != nil {
			return value.Value{}, err
		}
		for _, item := range list.AsList() {
			if fv, ok := item.Get(key.AsString()); ok && value.Equal(fv, want) {
				return item, nil
			}
		}
		return value.NewNull(), nil
	}
	want, err := argOrError("find", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	for _, item := range list.AsList() {
		if value.Equal(item, want) {
			return item, nil
		}
	}
	return value.NewNull(), nil
}

func fnRange(args value.Value) (value.Value, error) {
	from, err := argOrError("range", args, "from")
	if err != nil {
		return value.Value{}, err
	}
	to, err := argOrError("range", args, "to")
	if err != nil {
		return value.Value{}, err
	}
	if from.Kind() != value.Number || to.Kind() != value.Number {
		return value.Value{}, fmt.Errorf("range: 'from' and 'to' must be numbers")
	}
	step := 1.0
	if s, ok := args.Get("step"); ok {
		if s.Kind() != value.Number || s.AsNumber() == 0 {
			return value.Value{}, fmt.Errorf("range: 'step' must be a nonzero number")
		}
		step = s.AsNumber()
	}
	var out []value.Value
	f, t := from.AsNumber(), to.AsNumber()
	if step > 0 {
		for n := f; n < t; n += step {
			out = append(out, value.NewNumber(n))
		}
	} else {
		for n := f; n > t; n += step {
			out = append(out, value.NewNumber(n))
		}
	}
	return value.NewList(out), nil
}

func fnJoin(args value.Value) (value.Value, error) {
	list, err := argOrError("join", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("join: 'list' must be a list")
	}
	sep := ""
	if s, ok := args.Get("sep"); ok && s.Kind() == value.String {
		sep = s.AsString()
	}
	parts := make([]string, len(list.AsList()))
	for i, v := range list.AsList() {
		if v.Kind() != value.String {
			return value.Value{}, fmt.Errorf("join: element %d is not a string", i)
		}
		parts[i] = v.AsString()
	}
	return value.NewString(strings.Join(parts, sep)), nil
}

func fnUnique(args value.Value) (value.Value, error) {
	list, err := argOrError("unique", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("unique: 'list' must be a list")
	}
	var out []value.Value
	for _, item := range list.AsList() {
		dup := false
		for _, seen := range out {
			if value.Equal(item, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return value.NewList(out), nil
}

func fnPluck(args value.Value) (value.Value, error) {
	list, err := argOrError("pluck", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("pluck: 'list' must be a list")
	}
	key, err := argOrError("pluck", args, "key")
	if err != nil {
		return value.Value{}, err
	}
	if key.Kind() != value.String {
		return value.Value{}, fmt.Errorf("pluck: 'key' must be a string")
	}
	out := make([]value.Value, len(list.AsList()))
	for i, item := range list.AsList() {
		fv, ok := item.Get(key.AsString())
		if !ok {
			fv = value.NewNull()
		}
		out[i] = fv
	}
	return value.NewList(out), nil
}

func fnFlat(args value.Value) (value.Value, error) {
	list, err := argOrError("flat", args, "list")
	if err != nil {
		return value.Value{}, err
	}
	if list.Kind() != value.List {
		return value.Value{}, fmt.Errorf("flat: 'list' must be a list")
	}
	var out []value.Value
	for _, item := range list.AsList() {
		if item.Kind() == value.List {
			out = append(out, item.AsList()...)
		} else {
			out = append(out, item)
		}
	}
	return value.NewList(out), nil
}

// ---- record operations ----

func fnKeys(args value.Value) (value.Value, error) {
	rec, err := argOrError("keys", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	if rec.Kind() != value.Record {
		return value.Value{}, fmt.Errorf("keys: 'value' must be a record")
	}
	ks := rec.Keys()
	out := make([]value.Value, len(ks))
	for i, k := range ks {
		out[i] = value.NewString(k)
	}
	return value.NewList(out), nil
}

func fnValues(args value.Value) (value.Value, error) {
	rec, err := argOrError("values", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	if rec.Kind() != value.Record {
		return value.Value{}, fmt.Errorf("values: 'value' must be a record")
	}
	entries := rec.AsRecord()
	out := make([]value.Value, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return value.NewList(out), nil
}

func fnEntries(args value.Value) (value.Value, error) {
	rec, err := argOrError("entries", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	if rec.Kind() != value.Record {
		return value.Value{}, fmt.Errorf("entries: 'value' must be a record")
	}
	entries := rec.AsRecord()
	out := make([]value.Value, len(entries))
	for i, e := range entries {
		out[i] = value.NewRecord([]value.Entry{{Key: "key", Value: value.NewString(e.Key)}, {Key: "value", Value: e.Value}})
	}
	return value.NewList(out), nil
}

func fnMerge(args value.Value) (value.Value, error) {
	recs, err := argOrError("merge", args, "records")
	if err != nil {
		return value.Value{}, err
	}
	if recs.Kind() != value.List {
		return value.Value{}, fmt.Errorf("merge: 'records' must be a list of records")
	}
	var out []value.Entry
	seen := map[string]int{}
	for _, r := range recs.AsList() {
		if r.Kind() != value.Record {
			return value.Value{}, fmt.Errorf("merge: every element of 'records' must be a record")
		}
		for _, e := range r.AsRecord() {
			if i, ok := seen[e.Key]; ok {
				out[i] = e
			} else {
				seen[e.Key] = len(out)
				out = append(out, e)
			}
		}
	}
	return value.NewRecord(out), nil
}

// ---- math ----

func fnMathMax(args value.Value) (value.Value, error) {
	items, err := argOrError("math.max", args, "items")
	if err != nil {
		return value.Value{}, err
	}
	return mathReduce(items, "math.max", func(a, b float64) float64 {
		if a > b {
			return a
		}
		return b
	})
}

func fnMathMin(args value.Value) (value.Value, error) {
	items, err := argOrError("math.min", args, "items")
	if err != nil {
		return value.Value{}, err
	}
	return mathReduce(items, "math.min", func(a, b float64) float64 {
		if a < b {
			return a
		}
		return b
	})
}

func mathReduce(items value.Value, fn string, combine func(a, b float64) float64) (value.Value, error) {
	if items.Kind() != value.List {
		return value.Value{}, fmt.Errorf("%s: 'items' must be a list", fn)
	}
	list := items.AsList()
	if len(list) == 0 {
		return value.Value{}, fmt.Errorf("%s: 'items' must not be empty", fn)
	}
	if list[0].Kind() != value.Number {
		return value.Value{}, fmt.Errorf("%s: elements must be numbers", fn)
	}
	acc := list[0].AsNumber()
	for _, v := range list[1:] {
		if v.Kind() != value.Number {
			return value.Value{}, fmt.Errorf("%s: elements must be numbers", fn)
		}
		acc = combine(acc, v.AsNumber())
	}
	return value.NewNumber(acc), nil
}

// ---- strings ----

func fnStrConcat(args value.Value) (value.Value, error) {
	parts, err := argOrError("str.concat", args, "parts")
	if err != nil {
		return value.Value{}, err
	}
	if parts.Kind() != value.List {
		return value.Value{}, fmt.Errorf("str.concat: 'parts' must be a list")
	}
	var sb strings.Builder
	for i, p := range parts.AsList() {
		if p.Kind() != value.String {
			return value.Value{}, fmt.Errorf("str.concat: element %d is not a string", i)
		}
		sb.WriteString(p.AsString())
	}
	return value.NewString(sb.String()), nil
}

func fnStrSplit(args value.Value) (value.Value, error) {
	s, err := argOrError("str.split", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	sep, err := argOrError("str.split", args, "sep")
	if err != nil {
		return value.Value{}, err
	}
	if s.Kind() != value.String || sep.Kind() != value.String {
		return value.Value{}, fmt.Errorf("str.split: 'value' and 'sep' must be strings")
	}
	parts := strings.Split(s.AsString(), sep.AsString())
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.NewString(p)
	}
	return value.NewList(out), nil
}

func fnStrStarts(args value.Value) (value.Value, error) {
	s, err := argOrError("str.starts", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	prefix, err := argOrError("str.starts", args, "prefix")
	if err != nil {
		return value.Value{}, err
	}
	if s.Kind() != value.String || prefix.Kind() != value.String {
		return value.Value{}, fmt.Errorf("str.starts: 'value' and 'prefix' must be strings")
	}
	return value.NewBool(strings.HasPrefix(s.AsString(), prefix.AsString())), nil
}

func fnStrEnds(args value.Value) (value.Value, error) {
	s, err := argOrError("str.ends", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	suffix, err := argOrError("str.ends", args, "suffix")
	if err != nil {
		return value.Value{}, err
	}
	if s.Kind() != value.String || suffix.Kind() != value.String {
		return value.Value{}, fmt.Errorf("str.ends: 'value' and 'suffix' must be strings")
	}
	return value.NewBool(strings.HasSuffix(s.AsString(), suffix.AsString())), nil
}

func fnStrReplace(args value.Value) (value.Value, error) {
	s, err := argOrError("str.replace", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	old, err := argOrError("str.replace", args, "old")
	if err != nil {
		return value.Value{}, err
	}
	repl, err := argOrError("str.replace", args, "new")
	if err != nil {
		return value.Value{}, err
	}
	if s.Kind() != value.String || old.Kind() != value.String || repl.Kind() != value.String {
		return value.Value{}, fmt.Errorf("str.replace: 'value', 'old' and 'new' must be strings")
	}
	return value.NewString(strings.ReplaceAll(s.AsString(), old.AsString(), repl.AsString())), nil
}

func fnStrTemplate(args value.Value) (value.Value, error) {
	tmpl, err := argOrError("str.template", args, "template")
	if err != nil {
		return value.Value{}, err
	}
	if tmpl.Kind() != value.String {
		return value.Value{}, fmt.Errorf("str.template: 'template' must be a string")
	}
	vars := argOrDefault(args, "vars", value.NewRecord(nil))
	if vars.Kind() != value.Record {
		return value.Value{}, fmt.Errorf("str.template: 'vars' must be a record")
	}
	out := tmpl.AsString()
	for _, e := range vars.AsRecord() {
		placeholder := "{{" + e.Key + "}}"
		out = strings.ReplaceAll(out, placeholder, renderScalar(e.Value))
	}
	return value.NewString(out), nil
}

func renderScalar(v value.Value) string {
	if v.Kind() == value.String {
		return v.AsString()
	}
	return v.String()
}

// ---- parsing ----

func fnParseJSON(args value.Value) (value.Value, error) {
	s, err := argOrError("parse.json", args, "text")
	if err != nil {
		return value.Value{}, err
	}
	if s.Kind() != value.String {
		return value.Value{}, fmt.Errorf("parse.json: 'text' must be a string")
	}
	v, err := value.FromJSON([]byte(s.AsString()))
	if err != nil {
		return value.Value{}, fmt.Errorf("parse.json: %w", err)
	}
	return v, nil
}

// ---- containment ----

func fnContains(args value.Value) (value.Value, error) {
	container, err := argOrError("contains", args, "in")
	if err != nil {
		return value.Value{}, err
	}
	needle, err := argOrError("contains", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	switch container.Kind() {
	case value.List:
		for _, item := range container.AsList() {
			if value.Equal(item, needle) {
				return value.NewBool(true), nil
			}
		}
		return value.NewBool(false), nil
	case value.String:
		if needle.Kind() != value.String {
			return value.Value{}, fmt.Errorf("contains: 'value' must be a string when 'in' is a string")
		}
		return value.NewBool(strings.Contains(container.AsString(), needle.AsString())), nil
	case value.Record:
		if needle.Kind() != value.String {
			return value.Value{}, fmt.Errorf("contains: 'value' must be a string key when 'in' is a record")
		}
		_, ok := container.Get(needle.AsString())
		return value.NewBool(ok), nil
	default:
		return value.Value{}, fmt.Errorf("contains: 'in' must be a list, string or record")
	}
}

// ---- dotted paths: get / put ----

// splitPath parses a dotted path with optional [n] index segments,
// e.g. "a.b[2].c", into a flat segment list ("a", "b", 2, "c").
func splitPath(path string) ([]any, error) {
	var segs []any
	for _, raw := range strings.Split(path, ".") {
		name := raw
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				if name != "" {
					segs = append(segs, name)
				}
				break
			}
			if open > 0 {
				segs = append(segs, name[:open])
			}
			closeIdx := strings.IndexByte(name[open:], ']')
			if closeIdx < 0 {
				return nil, fmt.Errorf("invalid path segment %q: unterminated '['", raw)
			}
			idxStr := name[open+1 : open+closeIdx]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, fmt.Errorf("invalid path index %q", idxStr)
			}
			segs = append(segs, idx)
			name = name[open+closeIdx+1:]
		}
	}
	return segs, nil
}

func fnGet(args value.Value) (value.Value, error) {
	root, err := argOrError("get", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	pathArg, err := argOrError("get", args, "path")
	if err != nil {
		return value.Value{}, err
	}
	if pathArg.Kind() != value.String {
		return value.Value{}, fmt.Errorf("get: 'path' must be a string")
	}
	segs, err := splitPath(pathArg.AsString())
	if err != nil {
		return value.Value{}, fmt.Errorf("get: %w", err)
	}
	cur := root
	for _, seg := range segs {
		switch s := seg.(type) {
		case string:
			fv, ok := cur.Get(s)
			if !ok {
				return value.NewNull(), nil
			}
			cur = fv
		case int:
			if cur.Kind() != value.List || s < 0 || s >= len(cur.AsList()) {
				return value.NewNull(), nil
			}
			cur = cur.AsList()[s]
		}
	}
	return cur, nil
}

func fnPut(args value.Value) (value.Value, error) {
	root, err := argOrError("put", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	pathArg, err := argOrError("put", args, "path")
	if err != nil {
		return value.Value{}, err
	}
	newVal, err := argOrError("put", args, "newValue")
	if err != nil {
		return value.Value{}, err
	}
	if pathArg.Kind() != value.String {
		return value.Value{}, fmt.Errorf("put: 'path' must be a string")
	}
	segs, err := splitPath(pathArg.AsString())
	if err != nil {
		return value.Value{}, fmt.Errorf("put: %w", err)
	}
	if len(segs) == 0 {
		return newVal, nil
	}
	return putAt(root, segs, newVal)
}

func putAt(cur value.Value, segs []any, newVal value.Value) (value.Value, error) {
	seg := segs[0]
	rest := segs[1:]
	switch s := seg.(type) {
	case string:
		var child value.Value
		if existing, ok := cur.Get(s); ok {
			child = existing
		} else {
			child = value.NewNull()
		}
		if len(rest) == 0 {
			child = newVal
		} else {
			var err error
			child, err = putAt(child, rest, newVal)
			if err != nil {
				return value.Value{}, err
			}
		}
		if cur.Kind() != value.Record && cur.Kind() != value.Null {
			return value.Value{}, fmt.Errorf("put: cannot set field %q on a %s", s, cur.TypeName())
		}
		return cur.With(s, child), nil
	case int:
		var items []value.Value
		if cur.Kind() == value.List {
			items = append([]value.Value{}, cur.AsList()...)
		} else if cur.Kind() != value.Null {
			return value.Value{}, fmt.Errorf("put: cannot index into a %s", cur.TypeName())
		}
		for len(items) <= s {
			items = append(items, value.NewNull())
		}
		if len(rest) == 0 {
			items[s] = newVal
		} else {
			var err error
			items[s], err = putAt(items[s], rest, newVal)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.NewList(items), nil
	}
	return value.Value{}, fmt.Errorf("put: invalid path segment")
}

// ---- patch: RFC 6902 JSON Patch applied to a Value tree ----

func getAt(root value.Value, segs []any) (value.Value, bool) {
	cur := root
	for _, seg := range segs {
		switch s := seg.(type) {
		case string:
			fv, ok := cur.Get(s)
			if !ok {
				return value.Value{}, false
			}
			cur = fv
		case int:
			if cur.Kind() != value.List || s < 0 || s >= len(cur.AsList()) {
				return value.Value{}, false
			}
			cur = cur.AsList()[s]
		}
	}
	return cur, true
}

func removeAt(root value.Value, segs []any) (value.Value, error) {
	if len(segs) == 0 {
		return value.Value{}, fmt.Errorf("patch: cannot remove the document root")
	}
	last := segs[len(segs)-1]
	parentSegs := segs[:len(segs)-1]
	parent, ok := getAt(root, parentSegs)
	if !ok {
		return value.Value{}, fmt.Errorf("patch: remove path does not exist")
	}
	switch s := last.(type) {
	case string:
		if parent.Kind() != value.Record {
			return value.Value{}, fmt.Errorf("patch: remove target is not a record field")
		}
		var out []value.Entry
		found := false
		for _, e := range parent.AsRecord() {
			if e.Key == s {
				found = true
				continue
			}
			out = append(out, e)
		}
		if !found {
			return value.Value{}, fmt.Errorf("patch: field %q does not exist", s)
		}
		return setAt(root, parentSegs, value.NewRecord(out))
	case int:
		if parent.Kind() != value.List || s < 0 || s >= len(parent.AsList()) {
			return value.Value{}, fmt.Errorf("patch: remove index out of range")
		}
		items := parent.AsList()
		out := append(append([]value.Value{}, items[:s]...), items[s+1:]...)
		return setAt(root, parentSegs, value.NewList(out))
	}
	return value.Value{}, fmt.Errorf("patch: invalid path")
}

// setAt replaces the value found by following segs from root, used to
// write back a mutated parent container during remove/insert.
func setAt(root value.Value, segs []any, newVal value.Value) (value.Value, error) {
	if len(segs) == 0 {
		return newVal, nil
	}
	return putAt(root, segs, newVal)
}

func insertAt(root value.Value, segs []any, newVal value.Value) (value.Value, error) {
	if len(segs) == 0 {
		return newVal, nil
	}
	last := segs[len(segs)-1]
	parentSegs := segs[:len(segs)-1]
	if idx, ok := last.(int); ok {
		parent, ok := getAt(root, parentSegs)
		if !ok {
			parent = value.NewList(nil)
		}
		if parent.Kind() != value.List {
			return value.Value{}, fmt.Errorf("patch: add target is not a list")
		}
		items := parent.AsList()
		if idx < 0 || idx > len(items) {
			return value.Value{}, fmt.Errorf("patch: add index out of range")
		}
		out := make([]value.Value, 0, len(items)+1)
		out = append(out, items[:idx]...)
		out = append(out, newVal)
		out = append(out, items[idx:]...)
		return setAt(root, parentSegs, value.NewList(out))
	}
	return putAt(root, segs, newVal)
}

func patchOpPath(op value.Value, field string) ([]any, error) {
	p, ok := op.Get(field)
	if !ok || p.Kind() != value.String {
		return nil, fmt.Errorf("patch: operation missing string field %q", field)
	}
	return splitPath(p.AsString())
}

func fnPatch(args value.Value) (value.Value, error) {
	doc, err := argOrError("patch", args, "value")
	if err != nil {
		return value.Value{}, err
	}
	opsArg, err := argOrError("patch", args, "ops")
	if err != nil {
		return value.Value{}, err
	}
	if opsArg.Kind() != value.List {
		return value.Value{}, fmt.Errorf("patch: 'ops' must be a list")
	}
	cur := doc
	for i, op := range opsArg.AsList() {
		if op.Kind() != value.Record {
			return value.Value{}, fmt.Errorf("patch: operation %d is not a record", i)
		}
		kindV, ok := op.Get("op")
		if !ok || kindV.Kind() != value.String {
			return value.Value{}, fmt.Errorf("patch: operation %d missing 'op'", i)
		}
		path, err := patchOpPath(op, "path")
		if err != nil {
			return value.Value{}, fmt.Errorf("patch: operation %d: %w", i, err)
		}
		switch kindV.AsString() {
		case "add":
			v, ok := op.Get("value")
			if !ok {
				return value.Value{}, fmt.Errorf("patch: operation %d: 'add' requires 'value'", i)
			}
			cur, err = insertAt(cur, path, v)
		case "replace":
			v, ok := op.Get("value")
			if !ok {
				return value.Value{}, fmt.Errorf("patch: operation %d: 'replace' requires 'value'", i)
			}
			if _, exists := getAt(cur, path); !exists {
				return value.Value{}, fmt.Errorf("patch: operation %d: replace path does not exist", i)
			}
			cur, err = setAt(cur, path, v)
		case "remove":
			cur, err = removeAt(cur, path)
		case "move":
			from, ferr := patchOpPath(op, "from")
			if ferr != nil {
				return value.Value{}, fmt.Errorf("patch: operation %d: %w", i, ferr)
			}
			v, ok := getAt(cur, from)
			if !ok {
				return value.Value{}, fmt.Errorf("patch: operation %d: move source does not exist", i)
			}
			cur, err = removeAt(cur, from)
			if err == nil {
				cur, err = insertAt(cur, path, v)
			}
		case "copy":
			from, ferr := patchOpPath(op, "from")
			if ferr != nil {
				return value.Value{}, fmt.Errorf("patch: operation %d: %w", i, ferr)
			}
			v, ok := getAt(cur, from)
			if !ok {
				return value.Value{}, fmt.Errorf("patch: operation %d: copy source does not exist", i)
			}
			cur, err = insertAt(cur, path, v)
		case "test":
			v, ok := op.Get("value")
			if !ok {
				return value.Value{}, fmt.Errorf("patch: operation %d: 'test' requires 'value'", i)
			}
			actual, exists := getAt(cur, path)
			if !exists || !value.Equal(actual, v) {
				return value.Value{}, fmt.Errorf("patch: operation %d: test failed", i)
			}
		default:
			return value.Value{}, fmt.Errorf("patch: operation %d: unsupported op %q", i, kindV.AsString())
		}
		if err != nil {
			return value.Value{}, fmt.Errorf("patch: operation %d: %w", i, err)
		}
	}
	return cur, nil
}

// ---- Registry wiring ----

// Install registers every pure (non higher-order) stdlib function into
// reg. map/reduce/filter are intentionally absent: the evaluator
// implements them directly so it can charge the iteration budget and
// emit the map_start/reduce_start/filter_start trace pairs.
func Install(reg *plugin.Registry) error {
	fns := map[string]func(value.Value) (value.Value, error){
		"eq":           fnEq,
		"not":          fnNot,
		"and":          fnAnd,
		"or":           fnOr,
		"coalesce":     fnCoalesce,
		"typeof":       fnTypeof,
		"len":          fnLen,
		"append":       fnAppend,
		"concat":       fnConcat,
		"sort":         fnSort,
		"find":         fnFind,
		"range":        fnRange,
		"join":         fnJoin,
		"unique":       fnUnique,
		"pluck":        fnPluck,
		"flat":         fnFlat,
		"get":          fnGet,
		"put":          fnPut,
		"patch":        fnPatch,
		"parse.json":   fnParseJSON,
		"keys":         fnKeys,
		"values":       fnValues,
		"merge":        fnMerge,
		"entries":      fnEntries,
		"math.max":     fnMathMax,
		"math.min":     fnMathMin,
		"str.concat":   fnStrConcat,
		"str.split":    fnStrSplit,
		"str.starts":   fnStrStarts,
		"str.ends":     fnStrEnds,
		"str.replace":  fnStrReplace,
		"str.template": fnStrTemplate,
		"contains":     fnContains,
	}
	for name, fn := range fns {
		if err := reg.RegisterStdlib(plugin.StdlibFn{Name: name, Execute: fn}); err != nil {
			return err
		}
	}
	return nil
}
