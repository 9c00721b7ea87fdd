package matrix

import "strings"

// Flatten reduces v to its scalar leaves in document order.
// A nil Value flattens to a single null scalar.
func Flatten(v Value) []Scalar {
	switch t := v.(type) {
	case nil:
		return []Scalar{{}}
	case Scalar:
		return []Scalar{t}
	case List:
		out := make([]Scalar, 0, len(t))
		for _, item := range t {
			out = append(out, Flatten(item)...)
		}
		return out
	case Mapping:
		out := make([]Scalar, 0, len(t))
		for _, e := range t {
			out = append(out, Flatten(e.Value)...)
		}
		return out
	default:
		return []Scalar{{}}
	}
}

// Suffix returns the comma separated leaves of v, e.g. "linux, x64".
// ok is false when v is nil or has no leaves.
func Suffix(v Value) (suffix string, ok bool) {
	if v == nil {
		return "", false
	}
	if s, isScalar := v.(Scalar); isScalar && s.V == nil {
		return "", false
	}
	leaves := Flatten(v)
	if len(leaves) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		parts = append(parts, leaf.String())
	}
	return strings.Join(parts, ", "), true
}
