package rule

import (
	"changeprop/pkg/models"
)

// Registry maps a bus topic to the rules bound to it and derives the
// retry/error topic names a rule's envelopes are produced onto
// (spec.md §2, §6). Immutable after Build — a reload builds a fresh
// Registry and the caller swaps it atomically.
type Registry struct {
	byTopic map[string][]*Rule
	byName  map[string]*Rule
}

// Build compiles a registry from already-compiled rules, grouping by
// topic in declaration order (the executor must honor declaration
// order within a topic per spec.md §4.7 step 2).
func Build(rules []*Rule) *Registry {
	reg := &Registry{
		byTopic: make(map[string][]*Rule),
		byName:  make(map[string]*Rule, len(rules)),
	}
	for _, r := range rules {
		reg.byTopic[r.Topic] = append(reg.byTopic[r.Topic], r)
		reg.byName[r.Name] = r
	}
	return reg
}

// RulesForTopic returns the rules bound to topic, in declaration order.
func (reg *Registry) RulesForTopic(topic string) []*Rule {
	return reg.byTopic[topic]
}

// Lookup returns a rule by name, used to resolve a retry topic back to
// its owning rule when a retry consumer re-enters the executor.
func (reg *Registry) Lookup(name string) (*Rule, bool) {
	r, ok := reg.byName[name]
	return r, ok
}

// Topics returns every source topic the registry has rules for.
func (reg *Registry) Topics() []string {
	topics := make([]string, 0, len(reg.byTopic))
	for t := range reg.byTopic {
		topics = append(topics, t)
	}
	return topics
}

// RetryTopic returns the per-rule retry topic name.
func (reg *Registry) RetryTopic(ruleName string) string {
	return models.RetryTopicName(ruleName)
}

// ErrorTopic returns the single, shared error topic.
func (reg *Registry) ErrorTopic() string {
	return models.ErrorTopicName
}

// Names returns every compiled rule name, for the admin API's rule
// listing endpoint.
func (reg *Registry) Names() []string {
	names := make([]string, 0, len(reg.byName))
	for n := range reg.byName {
		names = append(names, n)
	}
	return names
}

// Size returns the total number of compiled rules.
func (reg *Registry) Size() int {
	return len(reg.byName)
}
