package cdp

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/chromedp/cdproto/runtime"
)

// Kind is the tag of a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindBool
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "absent"
	}
}

// Value is the result of evaluating a script in the page. Scripts that
// return undefined, null, an object, or that failed to run at all produce
// an absent Value.
type Value struct {
	kind Kind
	b    bool
	s    string
	n    float64
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// IsTrue reports whether v is the boolean true. Strings and numbers are
// never coerced.
func (v Value) IsTrue() bool { return v.kind == KindBool && v.b }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return strconv.Quote(v.s)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	default:
		return "<absent>"
	}
}

// FromRemoteObject converts an evaluation result into a Value.
func FromRemoteObject(obj *runtime.RemoteObject) Value {
	if obj == nil {
		return Absent()
	}
	switch obj.Type {
	case runtime.TypeBoolean:
		var b bool
		if err := json.Unmarshal(obj.Value, &b); err != nil {
			return Absent()
		}
		return BoolValue(b)
	case runtime.TypeString:
		var s string
		if err := json.Unmarshal(obj.Value, &s); err != nil {
			return Absent()
		}
		return StringValue(s)
	case runtime.TypeNumber:
		if len(obj.Value) > 0 {
			var n float64
			if err := json.Unmarshal(obj.Value, &n); err != nil {
				return Absent()
			}
			return NumberValue(n)
		}
		switch obj.UnserializableValue {
		case "NaN":
			return NumberValue(math.NaN())
		case "Infinity":
			return NumberValue(math.Inf(1))
		case "-Infinity":
			return NumberValue(math.Inf(-1))
		case "-0":
			return NumberValue(math.Copysign(0, -1))
		}
	}
	return Absent()
}
