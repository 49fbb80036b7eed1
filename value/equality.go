package value

// Equal implements A0 deep equality: tag first, then structural
// comparison. List comparison is order-sensitive; record comparison is
// key-set based with each key's value compared recursively, order
// irrelevant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.bool_ == b.bool_
	case Number:
		return a.num == b.num
	case String:
		return a.str == b.str
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Record:
		if len(a.record) != len(b.record) {
			return false
		}
		for _, ea := range a.record {
			bv, ok := b.Get(ea.Key)
			if !ok || !Equal(ea.Value, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
