package template

import (
	"encoding/json"
	"strings"
)

// lookupPath resolves a dotted field path (e.g. "meta.uri") against a
// decoded JSON tree, returning ok=false on any missing segment rather
// than panicking on a type assertion.
func lookupPath(tree map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var cur interface{} = tree
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// renderBody substitutes placeholders into a body spec: string values
// (including nested ones inside maps/slices) are passed through
// substitute; the result is marshaled to JSON bytes.
func renderBody(spec interface{}, lookup func(string) (string, bool)) ([]byte, error) {
	if spec == nil {
		return nil, nil
	}
	rendered := renderValue(spec, lookup)
	return json.Marshal(rendered)
}

func renderValue(v interface{}, lookup func(string) (string, bool)) interface{} {
	switch t := v.(type) {
	case string:
		return substitute(t, lookup)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, sub := range t {
			out[k] = renderValue(sub, lookup)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, sub := range t {
			out[i] = renderValue(sub, lookup)
		}
		return out
	default:
		return t
	}
}
