// Package rulesource loads rule documents from a configured backend —
// a static YAML file or a Postgres table — and builds the compiled
// rule.Registry the executor dispatches against (SPEC_FULL.md §3
// "[ADDED] Rule persistence"), grounded on the teacher's
// internal/filtering.Repository/Service split between storage and
// reload orchestration.
package rulesource

import (
	"context"

	"changeprop/pkg/rule"
)

// Source loads the current rule document from wherever rules live.
type Source interface {
	Load(ctx context.Context) (rule.Document, error)
}
