package template

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "undefined"
	}
}

// Value is a resolved variable value. The zero Value is undefined.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  *Object
	arr  []Value
}

// Undefined is returned for paths that do not resolve.
var Undefined = Value{}

func NullValue() Value { return Value{kind: KindNull} }

func StringValue(s string) Value { return Value{kind: KindString, str: s} }

func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func ArrayValue(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Object returns the nested object, or nil when v is not an object.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Items returns the array elements, or nil when v is not an array.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// IsEmpty reports whether v renders to the empty string.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindString:
		return v.str == ""
	default:
		return false
	}
}

// Text returns the substitution form of v: strings verbatim, scalars in
// canonical form, containers as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindUndefined, KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		var buf bytes.Buffer
		writeJSON(&buf, v)
		return buf.String()
	}
}

// MarshalJSON encodes v with object keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	writeJSON(&buf, v)
	return buf.Bytes(), nil
}

// Interface converts v into plain Go values. Object key order is not kept.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for _, key := range v.obj.keys {
			out[key] = v.obj.values[key].Interface()
		}
		return out
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Object is a string-keyed mapping that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set stores value under key. Overwriting keeps the original position.
func (o *Object) Set(key string, value Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Undefined, false
	}
	value, ok := o.values[key]
	return value, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	return ObjectValue(o).MarshalJSON()
}

func (o *Object) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBag(data)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}

func writeJSON(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindString:
		writeJSONString(buf, v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			buf.WriteString("null")
			return
		}
		buf.WriteString(formatNumber(v.num))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindObject:
		buf.WriteByte('{')
		first := true
		for _, key := range v.obj.keys {
			item := v.obj.values[key]
			if item.kind == KindUndefined {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeJSONString(buf, key)
			buf.WriteByte(':')
			writeJSON(buf, item)
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSON(buf, item)
		}
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
}

// writeJSONString quotes s like JSON.stringify: HTML characters and the
// line/paragraph separators U+2028 and U+2029 are written raw.
func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)

	buf.WriteByte('"')
	for {
		i := strings.IndexFunc(s, isLineSeparator)
		segment := s
		if i >= 0 {
			segment = s[:i]
		}
		tmp.Reset()
		_ = enc.Encode(segment)
		quoted := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
		buf.Write(quoted[1 : len(quoted)-1])
		if i < 0 {
			break
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		buf.WriteRune(r)
		s = s[i+size:]
	}
	buf.WriteByte('"')
}

func isLineSeparator(r rune) bool {
	return r == '\u2028' || r == '\u2029'
}

// formatNumber prints f the way JSON producers print numbers: integers
// without a fraction, exponent form only for very large or small magnitudes.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
