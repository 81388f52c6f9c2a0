package executor

import (
	"changeprop/internal/constants"
	"changeprop/pkg/httpclient"
	"changeprop/pkg/retrycond"
	"changeprop/pkg/rule"
)

// outcome is the result classification of one exec step (spec.md
// §4.7's table).
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeIgnore
	outcomeRetry
	outcomeFatal
)

// classify applies a rule's retry_on/ignore classifiers to one exec
// step's outcome. A non-nil transportErr (network failure, open
// circuit breaker, timeout) is folded into the same Result vocabulary
// as a missing status so it participates in retry_on/ignore exactly
// like an HTTP response would (SPEC_FULL.md §4.7 circuit breaker note).
func classify(r *rule.Rule, resp httpclient.Response, transportErr error) outcome {
	result := resultFrom(resp, transportErr)

	if transportErr == nil && resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax {
		return outcomeSuccess
	}
	if r.Ignore.Classify(result) {
		return outcomeIgnore
	}
	if r.RetryOn.Classify(result) {
		return outcomeRetry
	}
	return outcomeFatal
}

func resultFrom(resp httpclient.Response, transportErr error) retrycond.Result {
	if transportErr != nil {
		return retrycond.Result{"network_error": transportErr.Error()}
	}
	return retrycond.Result{
		"status": resp.StatusCode,
		"body":   string(resp.Body),
	}
}
