// Package value defines the dynamically-typed value model for chatscript.
//
// A Value is a closed tagged union over string, number, boolean, list,
// and structured (JSON-like) payloads. The union preserves the scripting
// coercions: the truthiness table and stringification for interpolation.
package value

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
	KindStructured
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindStructured:
		return "structured"
	}
	return "unknown"
}

// Value is an immutable dynamically-typed script value.
type Value struct {
	kind       Kind
	str        string
	num        float64
	boolean    bool
	list       []Value
	structured any
}

// Str creates a string value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Num creates a number value.
func Num(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// List creates a list value.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// Structured creates a structured value from decoded JSON data.
func Structured(data any) Value { return Value{kind: KindStructured, structured: data} }

// Empty is the empty string value.
func Empty() Value { return Str("") }

// Kind returns the variant this value holds.
func (v Value) Kind() Kind { return v.kind }

// Truthy reports whether the value is truthy. Empty strings, the number
// zero, and false are falsy; everything else (including "0" and "false")
// is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindBool:
		return v.boolean
	}
	return true
}

// String returns the interpolation-time stringification of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return strings.Join(parts, ", ")
	case KindStructured:
		b, err := json.Marshal(v.structured)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// Number returns the numeric payload (zero unless KindNumber).
func (v Value) Number() float64 { return v.num }

// Elems returns the list payload (nil unless KindList).
func (v Value) Elems() []Value { return v.list }

// Data returns the structured payload (nil unless KindStructured).
func (v Value) Data() any { return v.structured }

// Detect converts an external capability result into a Value. Results
// that parse as JSON objects or arrays become structured values; all
// other text stays a string verbatim.
func Detect(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var data any
		if err := json.Unmarshal([]byte(trimmed), &data); err == nil {
			return Structured(data)
		}
	}
	return Str(raw)
}
