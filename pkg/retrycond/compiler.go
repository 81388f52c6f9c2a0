// Package retrycond compiles a rule's retry_on / ignore stanza
// (spec.md §4.2) into a classify(result) predicate, applied identically
// to both stanzas by the executor.
package retrycond

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"changeprop/pkg/canonical"
)

// Result is the outcome of one exec step, as seen by a classifier:
// "status" is the HTTP status code, any other key is whatever the
// caller chooses to expose (e.g. "body", "network_error").
type Result map[string]interface{}

type fieldMatcher func(value interface{}) bool

// Classifier is a compiled retry_on or ignore stanza.
type Classifier struct {
	fields map[string]fieldMatcher
}

// Compile builds a Classifier from a decoded stanza: a mapping from
// result field name to a scalar, an array of scalars (OR), or a
// structured sub-pattern compared by canonical JSON equality.
func Compile(stanza map[string]interface{}) (*Classifier, error) {
	fields := make(map[string]fieldMatcher, len(stanza))
	for field, spec := range stanza {
		m, err := compileField(field, spec)
		if err != nil {
			return nil, err
		}
		fields[field] = m
	}
	return &Classifier{fields: fields}, nil
}

// Classify reports whether result satisfies every field in the
// stanza (AND across fields); a field's own array-form spec is
// evaluated as an OR internally by compileField.
func (c *Classifier) Classify(result Result) bool {
	for field, matcher := range c.fields {
		value, present := result[field]
		if !present {
			return false
		}
		if !matcher(value) {
			return false
		}
	}
	return true
}

func compileField(field string, spec interface{}) (fieldMatcher, error) {
	if options, ok := spec.([]interface{}); ok {
		matchers := make([]fieldMatcher, 0, len(options))
		for _, opt := range options {
			m, err := compileFieldOption(field, opt)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
		return func(value interface{}) bool {
			for _, m := range matchers {
				if m(value) {
					return true
				}
			}
			return false
		}, nil
	}
	return compileFieldOption(field, spec)
}

func compileFieldOption(field string, option interface{}) (fieldMatcher, error) {
	if field == "status" {
		return compileStatusOption(option)
	}
	return func(value interface{}) bool {
		return canonical.Equal(option, value)
	}, nil
}

// compileStatusOption implements spec.md §4.2's status semantics: a
// numeric literal matches the exact code; a string pattern containing
// "x" wildcards a digit in that position (e.g. "50x" matches 500-509).
func compileStatusOption(option interface{}) (fieldMatcher, error) {
	switch v := option.(type) {
	case float64:
		return func(value interface{}) bool {
			n, ok := numericStatus(value)
			return ok && n == v
		}, nil
	case int:
		want := float64(v)
		return func(value interface{}) bool {
			n, ok := numericStatus(value)
			return ok && n == want
		}, nil
	case string:
		if !strings.ContainsAny(v, "xX") {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &InvalidRetryCondition{Field: "status", Reason: fmt.Sprintf("not a number or wildcard pattern: %q", v)}
			}
			return func(value interface{}) bool {
				got, ok := numericStatus(value)
				return ok && got == n
			}, nil
		}
		re, err := wildcardToRegex(v)
		if err != nil {
			return nil, &InvalidRetryCondition{Field: "status", Reason: err.Error()}
		}
		return func(value interface{}) bool {
			s := statusString(value)
			return re.MatchString(s)
		}, nil
	default:
		return nil, &InvalidRetryCondition{Field: "status", Reason: "must be a number or a wildcard string pattern"}
	}
}

func wildcardToRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == 'x' || r == 'X' {
			b.WriteString(`\d`)
		} else if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			return nil, fmt.Errorf("invalid status wildcard pattern: %q", pattern)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func numericStatus(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func statusString(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return strconv.Itoa(int(v))
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
