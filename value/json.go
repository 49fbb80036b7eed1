package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ToJSON renders a Value as its canonical JSON encoding. Record key
// order is preserved (spec §3: "insertion order is preserved and
// observable ... JSON output"). Integers (finite values equal to their
// own truncation) render without a decimal point.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.bool_ {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("value: cannot render non-finite number %v as JSON", v.num)
		}
		if v.IsInteger() {
			fmt.Fprintf(buf, "%d", int64(v.num))
		} else {
			enc, err := json.Marshal(v.num)
			if err != nil {
				return err
			}
			buf.Write(enc)
		}
	case String:
		enc, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case List:
		buf.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Record:
		buf.WriteByte('{')
		for i, e := range v.record {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEnc, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(keyEnc)
			buf.WriteByte(':')
			if err := writeJSON(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: unknown kind %v", v.kind)
	}
	return nil
}

// FromJSON parses JSON bytes into a Value, preserving object key order
// via a token-level decode (encoding/json's map decoding would lose it).
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NewNumber(f), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return NewList(items), nil
		case '{':
			var entries []Entry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: expected string object key, got %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				entries = append(entries, Entry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return NewRecord(entries), nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected JSON token %v", tok)
}
