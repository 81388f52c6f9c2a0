package match

import (
	"regexp"
	"strconv"
	"strings"
)

// absent is a unique sentinel passed to a child node's test/bind
// functions when the parent object has no such field, distinguishing
// "field missing" from "field present with value null".
type absent struct{}

var absentValue interface{} = absent{}

func isAbsent(v interface{}) bool {
	_, ok := v.(absent)
	return ok
}

// node is one compiled position in a match tree: a predicate over the
// value found at that position, and a binder producing the value (or
// sub-object) to surface in the bindings tree at that position.
type node struct {
	test func(target interface{}) bool
	bind func(target interface{}) (interface{}, bool)
}

func compileNode(pattern interface{}, path string) (*node, error) {
	switch p := pattern.(type) {
	case string:
		if p == "undefined" {
			return compileUndefinedNode(), nil
		}
		if isRegexLiteral(p) {
			return compileRegexNode(p, path)
		}
		return compileScalarNode(p), nil
	case map[string]interface{}:
		return compileObjectNode(p, path)
	case []interface{}:
		return compileArrayNode(p, path)
	case nil, bool, float64, int:
		return compileScalarNode(p), nil
	case exprPlaceholder:
		return &node{
			test: func(interface{}) bool { return true },
			bind: func(interface{}) (interface{}, bool) { return nil, false },
		}, nil
	default:
		return nil, &InvalidMatch{Path: path, Reason: "unsupported pattern node type"}
	}
}

func compileUndefinedNode() *node {
	return &node{
		test: func(target interface{}) bool { return isAbsent(target) },
		bind: func(target interface{}) (interface{}, bool) { return nil, false },
	}
}

func compileScalarNode(pattern interface{}) *node {
	return &node{
		test: func(target interface{}) bool {
			if isAbsent(target) {
				return false
			}
			return scalarEqual(pattern, target)
		},
		bind: func(target interface{}) (interface{}, bool) {
			if isAbsent(target) {
				return nil, false
			}
			return target, true
		},
	}
}

func scalarEqual(pattern, target interface{}) bool {
	switch p := pattern.(type) {
	case float64:
		t, ok := toFloat(target)
		return ok && p == t
	case int:
		t, ok := toFloat(target)
		return ok && float64(p) == t
	case string:
		t, ok := target.(string)
		return ok && p == t
	case bool:
		t, ok := target.(bool)
		return ok && p == t
	case nil:
		return target == nil
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func compileObjectNode(pattern map[string]interface{}, path string) (*node, error) {
	type childField struct {
		key  string
		node *node
	}
	children := make([]childField, 0, len(pattern))
	for key, val := range pattern {
		childPath := path + "." + key
		child, err := compileNode(val, childPath)
		if err != nil {
			return nil, err
		}
		children = append(children, childField{key: key, node: child})
	}

	return &node{
		test: func(target interface{}) bool {
			if isAbsent(target) {
				return false
			}
			m, ok := target.(map[string]interface{})
			if !ok {
				return false
			}
			for _, c := range children {
				fieldVal, present := m[c.key]
				if !present {
					if !c.node.test(absentValue) {
						return false
					}
					continue
				}
				if !c.node.test(fieldVal) {
					return false
				}
			}
			return true
		},
		bind: func(target interface{}) (interface{}, bool) {
			result := make(map[string]interface{}, len(children))
			var m map[string]interface{}
			if mm, ok := target.(map[string]interface{}); ok {
				m = mm
			}
			for _, c := range children {
				var fieldVal interface{} = absentValue
				if m != nil {
					if v, present := m[c.key]; present {
						fieldVal = v
					}
				}
				if bv, ok := c.node.bind(fieldVal); ok {
					result[c.key] = bv
				}
			}
			return result, true
		},
	}, nil
}

func compileArrayNode(pattern []interface{}, path string) (*node, error) {
	children := make([]*node, 0, len(pattern))
	for i, val := range pattern {
		child, err := compileNode(val, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return &node{
		test: func(target interface{}) bool {
			arr, ok := target.([]interface{})
			if !ok {
				return false
			}
			for _, child := range children {
				found := false
				for _, elem := range arr {
					if child.test(elem) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		bind: func(target interface{}) (interface{}, bool) {
			arr, _ := target.([]interface{})
			result := make([]interface{}, 0, len(children))
			for _, child := range children {
				var bound interface{}
				for _, elem := range arr {
					if child.test(elem) {
						bound, _ = child.bind(elem)
						break
					}
				}
				result = append(result, bound)
			}
			return result, true
		},
	}, nil
}

// isRegexLiteral reports whether s follows the "/pattern/flags" match
// grammar (spec.md §3): a leading slash with a matching closing slash
// somewhere before the end, the remainder being valid regex flags.
func isRegexLiteral(s string) bool {
	if len(s) < 2 || s[0] != '/' {
		return false
	}
	closing := strings.LastIndex(s, "/")
	if closing <= 0 {
		return false
	}
	for _, f := range s[closing+1:] {
		if !strings.ContainsRune("dgimsuvy", f) {
			return false
		}
	}
	return true
}

func parseRegexLiteral(s string) (body, flags string) {
	closing := strings.LastIndex(s, "/")
	return s[1:closing], s[closing+1:]
}

func compileRegexNode(literal string, path string) (*node, error) {
	body, flags := parseRegexLiteral(literal)

	if err := checkCaptureGroupMixing(body); err != nil {
		return nil, &InvalidMatch{Path: path, Reason: err.Error()}
	}

	goBody := strings.ReplaceAll(body, "(?<", "(?P<")
	if strings.Contains(flags, "i") {
		goBody = "(?i)" + goBody
	}

	re, err := regexp.Compile(goBody)
	if err != nil {
		return nil, &InvalidMatch{Path: path, Reason: "invalid regex: " + err.Error()}
	}

	names := re.SubexpNames()
	hasNamed := false
	for _, n := range names {
		if n != "" {
			hasNamed = true
			break
		}
	}

	return &node{
		test: func(target interface{}) bool {
			s, ok := target.(string)
			if !ok {
				return false
			}
			return re.MatchString(s)
		},
		bind: func(target interface{}) (interface{}, bool) {
			s, ok := target.(string)
			if !ok {
				return nil, false
			}
			m := re.FindStringSubmatch(s)
			if m == nil {
				return nil, false
			}
			if !hasNamed {
				return s, true
			}
			captures := make(map[string]interface{}, len(names)-1)
			for i, name := range names {
				if i == 0 || name == "" {
					continue
				}
				captures[name] = m[i]
			}
			return captures, true
		},
	}, nil
}

// checkCaptureGroupMixing rejects a regex body mixing named and
// unnamed capturing groups, per spec.md §4.1's compile-time error.
func checkCaptureGroupMixing(body string) error {
	named := false
	unnamed := false
	for i := 0; i < len(body); i++ {
		if body[i] != '(' {
			continue
		}
		if i+1 < len(body) && body[i+1] == '?' {
			if i+2 < len(body) && body[i+2] == '<' && (i+3 >= len(body) || (body[i+3] != '=' && body[i+3] != '!')) {
				named = true
			}
			// any other "(?...)" form (non-capturing, lookaround) is not a capturing group.
			continue
		}
		unnamed = true
	}
	if named && unnamed {
		return errMixedCaptureGroups
	}
	return nil
}

var errMixedCaptureGroups = &InvalidMatch{Reason: "regex mixes named and unnamed capture groups"}
