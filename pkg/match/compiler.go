// Package match compiles a declarative match tree (spec.md §3, §4.1)
// into a predicate and a binder: pure, total functions over a decoded
// JSON event tree. Both walk the same compiled structure so that a
// well-formed match implies a well-formed set of bindings.
package match

import (
	"context"
	"fmt"
	"strconv"

	"changeprop/pkg/cel"
)

// Bindings mirrors the shape of the match tree: literal matches keep
// their value, and named-capture regexes are replaced by a
// {name: value} sub-object at the position the regex appeared.
type Bindings map[string]interface{}

// Evaluator is the subset of pkg/cel.Evaluator a $expr node needs.
// Accepting an interface here lets tests supply a stub without
// depending on a live CEL environment.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, tree map[string]interface{}, captures map[string]string) (bool, error)
}

// Matcher is a compiled match tree, ready to test and bind events.
type Matcher struct {
	root      *node
	exprs     []string
	evaluator Evaluator
}

// Compile builds a Matcher from a decoded pattern (typically the value
// of a rule's "match" or "match_not" field). evaluator may be nil if
// the pattern contains no "$expr" nodes; passing nil for a pattern that
// does contain one is a programmer error surfaced at Test/Bind time.
func Compile(pattern interface{}, evaluator Evaluator) (*Matcher, error) {
	exprs, err := collectExprs(pattern, "$")
	if err != nil {
		return nil, err
	}
	stripped := stripExprs(pattern)

	root, err := compileNode(stripped, "$")
	if err != nil {
		return nil, err
	}

	return &Matcher{root: root, exprs: exprs, evaluator: evaluator}, nil
}

// Test reports whether event conforms to the compiled tree, including
// any "$expr" escape-hatch conditions.
func (m *Matcher) Test(event map[string]interface{}) bool {
	if !m.root.test(map[string]interface{}(event)) {
		return false
	}
	if len(m.exprs) == 0 {
		return true
	}

	bindings, _ := m.root.bind(map[string]interface{}(event))
	captures := flattenCaptures(bindings)

	ctx := context.Background()
	for _, expr := range m.exprs {
		ok, err := m.evaluator.Evaluate(ctx, expr, event, captures)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Bind produces the bindings tree for event. Callers must only call
// Bind after Test has returned true for the same event.
func (m *Matcher) Bind(event map[string]interface{}) Bindings {
	b, _ := m.root.bind(map[string]interface{}(event))
	m2, ok := b.(map[string]interface{})
	if !ok {
		return Bindings{}
	}
	return Bindings(m2)
}

// flattenCaptures reduces a bindings tree to the string-valued leaves
// $expr nodes can reference by name, matching pkg/cel's "captures" map.
func flattenCaptures(v interface{}) map[string]string {
	out := map[string]string{}
	flattenInto(v, out)
	return out
}

func flattenInto(v interface{}, out map[string]string) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, sub := range t {
			switch s := sub.(type) {
			case string:
				out[k] = s
			case map[string]interface{}:
				flattenInto(s, out)
			}
		}
	}
}

// collectExprs walks pattern for object nodes carrying a "$expr" key
// and returns their expression bodies in encounter order. An object
// that mixes "$expr" with any other key is rejected as InvalidMatch
// (SPEC_FULL.md §3): the escape hatch must stand alone at whatever
// tree position it occupies.
func collectExprs(pattern interface{}, path string) ([]string, error) {
	var exprs []string
	var walk func(interface{}, string) error
	walk = func(p interface{}, path string) error {
		switch t := p.(type) {
		case map[string]interface{}:
			if raw, ok := t["$expr"]; ok {
				if len(t) != 1 {
					return &InvalidMatch{Path: path, Reason: "$expr cannot be mixed with other keys in the same object"}
				}
				s, ok := raw.(string)
				if !ok {
					return &InvalidMatch{Path: path, Reason: "$expr value must be a string"}
				}
				exprs = append(exprs, s)
				return nil
			}
			for k, v := range t {
				if err := walk(v, path+"."+k); err != nil {
					return err
				}
			}
		case []interface{}:
			for i, v := range t {
				if err := walk(v, path+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(pattern, path); err != nil {
		return nil, err
	}
	return exprs, nil
}

// exprPlaceholder stands in for a "$expr" object in the stripped tree;
// compileNode turns it into a node that accepts any value and binds
// nothing.
type exprPlaceholder struct{}

// stripExprs returns a copy of pattern with every "$expr" object
// replaced by an exprPlaceholder, since it is not a structural field to
// match but a deferred condition evaluated separately in Matcher.Test.
func stripExprs(pattern interface{}) interface{} {
	switch t := pattern.(type) {
	case map[string]interface{}:
		if _, ok := t["$expr"]; ok {
			return exprPlaceholder{}
		}
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = stripExprs(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = stripExprs(v)
		}
		return out
	default:
		return pattern
	}
}

// NewCELEvaluator adapts pkg/cel.Evaluator to the match.Evaluator
// interface, so callers building a rule registry don't need to import
// pkg/cel directly.
func NewCELEvaluator() (Evaluator, error) {
	e, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to build $expr evaluator: %w", err)
	}
	return e, nil
}
