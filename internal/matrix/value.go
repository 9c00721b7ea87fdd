package matrix

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMapping
)

// Value is a JSON-like matrix value. It is one of Scalar, List or Mapping.
type Value interface {
	Kind() Kind
}

// Scalar holds a string, float64, bool or nil.
type Scalar struct {
	V any
}

// List is an ordered sequence of values.
type List []Value

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping keeps its entries in the order they appeared in the source document.
type Mapping []Entry

func (Scalar) Kind() Kind  { return KindScalar }
func (List) Kind() Kind    { return KindList }
func (Mapping) Kind() Kind { return KindMapping }

// String renders the scalar the way GitHub shows matrix values in job names.
// Null renders as empty text.
func (s Scalar) String() string {
	switch v := s.V.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Parse decodes raw JSON into a Value. Blank input yields a nil Value.
func Parse(raw string) (Value, error) {
	if isBlank(raw) {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, errors.Newf("invalid JSON %q", raw)
	}
	return FromResult(gjson.Parse(raw)), nil
}

// FromResult converts an already parsed gjson result, keeping object key order.
// Duplicate keys keep their first position and last value.
func FromResult(r gjson.Result) Value {
	switch {
	case r.IsObject():
		var m Mapping
		r.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			val := FromResult(v)
			for i := range m {
				if m[i].Key == key {
					m[i].Value = val
					return true
				}
			}
			m = append(m, Entry{Key: key, Value: val})
			return true
		})
		return m
	case r.IsArray():
		list := List{}
		r.ForEach(func(_, v gjson.Result) bool {
			list = append(list, FromResult(v))
			return true
		})
		return list
	}

	switch r.Type {
	case gjson.String:
		return Scalar{V: r.Str}
	case gjson.Number:
		return Scalar{V: r.Num}
	case gjson.True:
		return Scalar{V: true}
	case gjson.False:
		return Scalar{V: false}
	default:
		return Scalar{}
	}
}

// ToInterface converts v into plain Go values for JSON encoding.
// Mapping key order is lost.
func ToInterface(v Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Scalar:
		return t.V
	case List:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, ToInterface(item))
		}
		return out
	case Mapping:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = ToInterface(e.Value)
		}
		return out
	default:
		return nil
	}
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
