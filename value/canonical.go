package value

import (
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// canonicalNode is the CBOR-serializable shape used only for hashing.
// Record keys are sorted here (unlike ToJSON/String, which preserve
// insertion order) so that two structurally-equal records that were
// built with different insertion orders still produce the same digest,
// mirroring the two-pass canonicalize-then-hash approach used for plan
// digests in the teacher codebase.
type canonicalNode struct {
	Kind    string          `cbor:"k"`
	Bool    bool            `cbor:"b,omitempty"`
	Num     float64         `cbor:"n,omitempty"`
	Str     string          `cbor:"s,omitempty"`
	List    []canonicalNode `cbor:"l,omitempty"`
	Record  []canonicalPair `cbor:"r,omitempty"`
}

type canonicalPair struct {
	Key string        `cbor:"key"`
	Val canonicalNode `cbor:"val"`
}

func toCanonical(v Value) canonicalNode {
	switch v.kind {
	case Null:
		return canonicalNode{Kind: "null"}
	case Bool:
		return canonicalNode{Kind: "bool", Bool: v.bool_}
	case Number:
		return canonicalNode{Kind: "number", Num: v.num}
	case String:
		return canonicalNode{Kind: "string", Str: v.str}
	case List:
		items := make([]canonicalNode, len(v.list))
		for i, e := range v.list {
			items[i] = toCanonical(e)
		}
		return canonicalNode{Kind: "list", List: items}
	case Record:
		sorted := sortedEntries(v.record)
		pairs := make([]canonicalPair, len(sorted))
		for i, e := range sorted {
			pairs[i] = canonicalPair{Key: e.Key, Val: toCanonical(e.Value)}
		}
		return canonicalNode{Kind: "record", Record: pairs}
	default:
		return canonicalNode{Kind: "null"}
	}
}

var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Canonicalize returns the deterministic CBOR encoding of v, used only
// for content hashing (Digest) — never
// as a substitute for the JSON codec required by spec §3.
func Canonicalize(v Value) ([]byte, error) {
	return canonicalEncMode.Marshal(toCanonical(v))
}

// Digest returns the BLAKE2b-256 digest of v's canonical encoding.
func Digest(v Value) ([32]byte, error) {
	enc, err := Canonicalize(v)
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(enc), nil
}
