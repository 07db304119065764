package ledger

import (
	"errors"
	"math/big"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUndecodable is returned by DecodePayload when the content is not a JSON object.
var ErrUndecodable = errors.New("payload is not a JSON object")

// Kind is the type tag of a decoded payload field.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is one field of a decoded payload. Accessors report false when the
// field is absent or holds a different kind.
type Value struct {
	res     gjson.Result
	present bool
}

// Kind returns the type tag of the value.
func (v Value) Kind() Kind {
	if !v.present {
		return KindAbsent
	}
	switch v.res.Type {
	case gjson.Null:
		return KindNull
	case gjson.True, gjson.False:
		return KindBool
	case gjson.Number:
		return KindNumber
	case gjson.String:
		return KindString
	case gjson.JSON:
		if v.res.IsArray() {
			return KindArray
		}
		return KindObject
	}
	return KindAbsent
}

// Present reports whether the field exists, whatever its kind.
func (v Value) Present() bool { return v.present }

// String returns the value when it is a JSON string.
func (v Value) String() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	return v.res.Str, true
}

// Integer returns the value when it is a JSON number written as an integer
// literal. Fractions and exponents are refused so that amounts are never
// rounded. The literal may be arbitrarily large.
func (v Value) Integer() (*big.Int, bool) {
	if v.Kind() != KindNumber {
		return nil, false
	}
	raw := strings.TrimSpace(v.res.Raw)
	if raw == "" || strings.ContainsAny(raw, ".eE+") {
		return nil, false
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, false
	}
	return n, true
}

// Payload is a decoded post content: a JSON object with typed field lookups.
type Payload struct {
	root gjson.Result
}

// DecodePayload parses raw post content. Anything other than a well-formed
// JSON object yields ErrUndecodable.
func DecodePayload(raw []byte) (Payload, error) {
	if !gjson.ValidBytes(raw) {
		return Payload{}, ErrUndecodable
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Payload{}, ErrUndecodable
	}
	return Payload{root: root}, nil
}

// Field looks up a top-level key by exact name. When a key repeats, the
// first occurrence wins. Key names are matched literally, without path syntax.
func (p Payload) Field(name string) Value {
	var out Value
	p.root.ForEach(func(key, value gjson.Result) bool {
		if key.Str == name {
			out = Value{res: value, present: true}
			return false
		}
		return true
	})
	return out
}
