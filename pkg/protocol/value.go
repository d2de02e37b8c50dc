package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies the JSON shape of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsStructured reports whether the kind is an array or an object.
func (k Kind) IsStructured() bool {
	return k == KindArray || k == KindObject
}

var nullLiteral = []byte("null")

// Value is a loosely-typed argument or result as it appeared on the wire.
// The zero Value is JSON null.
type Value struct {
	raw json.RawMessage
}

// Null is the JSON null value.
var Null = Value{}

// RawValue wraps already-encoded JSON. The bytes are copied.
func RawValue(raw []byte) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Null, ErrInvalidValue
	}
	if bytes.Equal(trimmed, nullLiteral) {
		return Null, nil
	}
	return Value{raw: append(json.RawMessage(nil), trimmed...)}, nil
}

// ValueOf encodes a Go value. A Value passes through unchanged.
func ValueOf(v any) (Value, error) {
	switch tv := v.(type) {
	case nil:
		return Null, nil
	case Value:
		return tv, nil
	case *Value:
		if tv == nil {
			return Null, nil
		}
		return *tv, nil
	case json.RawMessage:
		return RawValue(tv)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Null, fmt.Errorf("protocol: encode value: %w", err)
	}
	return RawValue(b)
}

// MustValueOf is like ValueOf but panics on error. Intended for tests and
// literals known to encode.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the JSON kind of the value.
func (v Value) Kind() Kind {
	if len(v.raw) == 0 {
		return KindNull
	}
	switch v.raw[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	default:
		return KindNumber
	}
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Raw returns the encoded JSON of the value.
func (v Value) Raw() json.RawMessage {
	if len(v.raw) == 0 {
		return json.RawMessage(nullLiteral)
	}
	return v.raw
}

// Decode unmarshals the value into the given pointer.
func (v Value) Decode(into any) error {
	return json.Unmarshal(v.Raw(), into)
}

// Bool returns the value as a bool when it is a JSON boolean.
func (v Value) Bool() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.raw[0] == 't', true
}

// Number returns the value as a json.Number when it is a JSON number.
func (v Value) Number() (json.Number, bool) {
	if v.Kind() != KindNumber {
		return "", false
	}
	return json.Number(v.raw), true
}

// Text returns the unquoted string when the value is a JSON string.
func (v Value) Text() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// String returns the JSON text of the value.
func (v Value) String() string {
	return string(v.Raw())
}

// Equal reports whether two values have the same encoding after compaction.
func (v Value) Equal(other Value) bool {
	var a, b bytes.Buffer
	if err := json.Compact(&a, v.Raw()); err != nil {
		return false
	}
	if err := json.Compact(&b, other.Raw()); err != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	val, err := RawValue(b)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
