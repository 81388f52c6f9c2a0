// Package rule compiles declarative rule documents into the
// test/getExec/expand contract the executor drives (spec.md §4.3),
// grounded on the teacher's internal/filtering predicate-compilation
// style, generalized from single predicates to full match/retry
// compilation.
package rule

import (
	"fmt"

	"changeprop/internal/constants"
	"changeprop/pkg/match"
	"changeprop/pkg/retrycond"
	"changeprop/pkg/template"
)

// compiledOption is one compiled branch of a rule.
type compiledOption struct {
	matcher    *match.Matcher
	antiMatch  *match.Matcher // nil when the option carries no match_not
	templates  []template.Template
	execSpecs  []ExecSpec
}

// Rule is immutable after Compile. It bundles topic, compiled options,
// retry/ignore classifiers, and retry policy (spec.md §3/§4.3).
type Rule struct {
	Name          string
	Topic         string
	RetryOn       *retrycond.Classifier
	Ignore        *retrycond.Classifier
	RetryDelayMs  int
	RetryLimit    int
	RetryFactor   int
	DecodeResults bool

	options []compiledOption
}

// Compile builds a Rule from its declarative spec. evaluator backs any
// "$expr" CEL conditions nested in match trees; newTemplate constructs
// the Template collaborator for one exec entry (injected so this
// package never hard-depends on a single templating implementation).
func Compile(spec Spec, evaluator match.Evaluator, newTemplate func(ExecSpec) template.Template) (*Rule, error) {
	if spec.Name == "" {
		return nil, &InvalidRule{Name: spec.Name, Reason: "name is required"}
	}
	if spec.Topic == "" {
		return nil, &InvalidRule{Name: spec.Name, Reason: "topic is required"}
	}

	r := &Rule{
		Name:          spec.Name,
		Topic:         spec.Topic,
		RetryDelayMs:  spec.RetryDelayMs,
		RetryLimit:    spec.RetryLimit,
		RetryFactor:   spec.RetryFactor,
		DecodeResults: spec.DecodeResults,
	}
	if r.RetryDelayMs == 0 {
		r.RetryDelayMs = constants.DefaultRetryDelayMs
	}
	if r.RetryLimit == 0 {
		r.RetryLimit = constants.DefaultRetryLimit
	}
	if r.RetryFactor == 0 {
		r.RetryFactor = constants.DefaultRetryFactor
	}

	retryOn := spec.RetryOn
	if retryOn == nil {
		retryOn = map[string]interface{}{"status": []interface{}{"50x"}}
	}
	ignore := spec.Ignore
	if ignore == nil {
		ignore = map[string]interface{}{"status": []interface{}{412}}
	}

	retryClassifier, err := retrycond.Compile(retryOn)
	if err != nil {
		return nil, &InvalidRule{Name: spec.Name, Reason: fmt.Sprintf("retry_on: %v", err)}
	}
	ignoreClassifier, err := retrycond.Compile(ignore)
	if err != nil {
		return nil, &InvalidRule{Name: spec.Name, Reason: fmt.Sprintf("ignore: %v", err)}
	}
	r.RetryOn = retryClassifier
	r.Ignore = ignoreClassifier

	optionSpecs := spec.Cases
	if len(optionSpecs) == 0 {
		optionSpecs = []OptionSpec{{Match: spec.Match, MatchNot: spec.MatchNot, Exec: spec.Exec}}
	}

	for i, os := range optionSpecs {
		opt, err := compileOption(os, evaluator, newTemplate)
		if err != nil {
			return nil, &InvalidRule{Name: spec.Name, Reason: fmt.Sprintf("case %d: %v", i, err)}
		}
		r.options = append(r.options, opt)
	}

	return r, nil
}

func compileOption(spec OptionSpec, evaluator match.Evaluator, newTemplate func(ExecSpec) template.Template) (compiledOption, error) {
	var opt compiledOption

	if spec.Match != nil {
		m, err := match.Compile(spec.Match, evaluator)
		if err != nil {
			return opt, fmt.Errorf("match: %w", err)
		}
		opt.matcher = m
	} else {
		// Absent match matches unconditionally — a no-match stanza is
		// only meaningful when paired with a match_not.
		m, err := match.Compile(map[string]interface{}{}, evaluator)
		if err != nil {
			return opt, err
		}
		opt.matcher = m
	}

	if spec.MatchNot != nil {
		anti, err := match.Compile(spec.MatchNot, evaluator)
		if err != nil {
			return opt, fmt.Errorf("match_not: %w", err)
		}
		opt.antiMatch = anti
	}

	opt.execSpecs = spec.Exec
	for _, es := range spec.Exec {
		opt.templates = append(opt.templates, newTemplate(es))
	}

	return opt, nil
}

// Test returns the index of the first option whose match holds and
// match_not does not, or -1 when no option fires (spec.md §4.3).
func (r *Rule) Test(event map[string]interface{}) int {
	for i, opt := range r.options {
		if !opt.matcher.Test(event) {
			continue
		}
		if opt.antiMatch != nil && opt.antiMatch.Test(event) {
			continue
		}
		return i
	}
	return -1
}

// GetExec returns the ordered templates for option i.
func (r *Rule) GetExec(i int) []template.Template {
	return r.options[i].templates
}

// ExecSpecs returns the declarative exec entries for option i, used by
// the executor to detect a produce_to_topic step without re-rendering.
func (r *Rule) ExecSpecs(i int) []ExecSpec {
	return r.options[i].execSpecs
}

// Expand returns the bindings for option i against event.
func (r *Rule) Expand(i int, event map[string]interface{}) match.Bindings {
	return r.options[i].matcher.Bind(event)
}

// IsNoOp reports whether option i has no exec steps — the rule still
// counts as matched and dispatched, but performs no HTTP or produce.
func (r *Rule) IsNoOp(i int) bool {
	return len(r.options[i].templates) == 0
}
