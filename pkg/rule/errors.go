package rule

import "fmt"

// InvalidRule reports a rule document that failed construction
// (spec.md §7): missing topic, an option with a malformed match tree,
// or a malformed retry/ignore stanza.
type InvalidRule struct {
	Name   string
	Reason string
}

func (e *InvalidRule) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Name, e.Reason)
}
