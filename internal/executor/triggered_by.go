package executor

import (
	"strings"

	"changeprop/internal/constants"
)

// appendTriggeredBy joins a new "<rule_name>:<uri>" token onto an
// inherited chain (spec.md §4.7). An empty parent chain yields just the
// new token.
func appendTriggeredBy(parent, token string) string {
	if parent == "" {
		return token
	}
	return parent + "," + token
}

// chainTokens splits a triggered_by chain back into its tokens.
func chainTokens(chain string) []string {
	if chain == "" {
		return nil
	}
	return strings.Split(chain, ",")
}

// inChain reports whether token already appears in chain, the
// membership check behind loop detection (spec.md §4.7, §9).
func inChain(chain, token string) bool {
	for _, t := range chainTokens(chain) {
		if t == token {
			return true
		}
	}
	return false
}

// chainTooLong reports whether chain has already reached the maximum
// permitted length, the bound spec.md §9 requires in addition to the
// membership check.
func chainTooLong(chain string) bool {
	return len(chainTokens(chain)) >= constants.MaxTriggeredChain
}
