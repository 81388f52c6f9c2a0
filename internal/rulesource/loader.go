package rulesource

import (
	"fmt"

	"changeprop/pkg/match"
	"changeprop/pkg/rule"
	"changeprop/pkg/template"
)

// Build compiles every spec in doc into a rule.Rule and assembles them
// into a fresh rule.Registry. evaluator backs any "$expr" match nodes;
// it may be nil only if no spec's match trees use one, in which case
// rule.Compile surfaces the nil-evaluator misuse at Test/Bind time.
func Build(doc rule.Document, evaluator match.Evaluator) (*rule.Registry, error) {
	rules := make([]*rule.Rule, 0, len(doc.Rules))
	for _, spec := range doc.Rules {
		r, err := rule.Compile(spec, evaluator, newTemplateFor(spec))
		if err != nil {
			return nil, fmt.Errorf("rulesource: compiling rule %q: %w", spec.Name, err)
		}
		rules = append(rules, r)
	}
	return rule.Build(rules), nil
}

// newTemplateFor closes over spec so the per-exec-entry template
// constructor can carry the rule-level decode_results flag down to
// each rendered request (template.Spec has no room for it otherwise,
// since decode_results is declared once per rule, not per exec entry).
func newTemplateFor(spec rule.Spec) func(rule.ExecSpec) template.Template {
	return func(es rule.ExecSpec) template.Template {
		return template.New(template.Spec{
			Method:        es.Method,
			URI:           es.URI,
			Headers:       es.Headers,
			Body:          es.Body,
			DecodeResults: spec.DecodeResults,
		})
	}
}
