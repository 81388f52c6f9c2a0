package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/template"
)

type noopEvaluator struct{}

func (noopEvaluator) Evaluate(_ context.Context, _ string, _ map[string]interface{}, _ map[string]string) (bool, error) {
	return true, nil
}

func newPlaceholderTemplate(spec ExecSpec) template.Template {
	body := make(map[string]interface{}, len(spec.Body))
	for k, v := range spec.Body {
		body[k] = v
	}
	return template.New(template.Spec{
		Method:  spec.Method,
		URI:     spec.URI,
		Headers: spec.Headers,
		Body:    body,
	})
}

func TestCompileRequiresTopic(t *testing.T) {
	_, err := Compile(Spec{Name: "r1"}, noopEvaluator{}, newPlaceholderTemplate)
	require.Error(t, err)
	var invalid *InvalidRule
	assert.ErrorAs(t, err, &invalid)
}

func TestCompileAppliesDefaults(t *testing.T) {
	r, err := Compile(Spec{Name: "r1", Topic: "page-changes"}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)
	assert.Equal(t, 60000, r.RetryDelayMs)
	assert.Equal(t, 2, r.RetryLimit)
	assert.Equal(t, 6, r.RetryFactor)
}

func TestTestReturnsFirstMatchingOption(t *testing.T) {
	r, err := Compile(Spec{
		Name:  "simple_test_rule",
		Topic: "simple_test_rule",
		Match: map[string]interface{}{"message": "test"},
		Exec: []ExecSpec{
			{Method: "POST", URI: "http://mock.com/"},
		},
	}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	assert.Equal(t, 0, r.Test(map[string]interface{}{"message": "test"}))
	assert.Equal(t, -1, r.Test(map[string]interface{}{"message": "no"}))
	assert.Equal(t, -1, r.Test(map[string]interface{}{}))
}

func TestTestHonorsMatchNot(t *testing.T) {
	r, err := Compile(Spec{
		Name:     "r1",
		Topic:    "t1",
		Match:    map[string]interface{}{"status": "active"},
		MatchNot: map[string]interface{}{"archived": true},
		Exec:     []ExecSpec{{Method: "GET", URI: "http://mock.com/"}},
	}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	assert.Equal(t, 0, r.Test(map[string]interface{}{"status": "active"}))
	assert.Equal(t, -1, r.Test(map[string]interface{}{"status": "active", "archived": true}))
}

func TestIsNoOpWhenExecAbsent(t *testing.T) {
	r, err := Compile(Spec{Name: "r1", Topic: "t1", Match: map[string]interface{}{"x": 1}}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	idx := r.Test(map[string]interface{}{"x": 1.0})
	require.NotEqual(t, -1, idx)
	assert.True(t, r.IsNoOp(idx))
}

func TestCasesDispatchFirstMatchOnly(t *testing.T) {
	r, err := Compile(Spec{
		Name:  "multi",
		Topic: "t1",
		Cases: []OptionSpec{
			{Match: map[string]interface{}{"kind": "a"}, Exec: []ExecSpec{{URI: "http://mock.com/a"}}},
			{Match: map[string]interface{}{"kind": "a"}, Exec: []ExecSpec{{URI: "http://mock.com/b"}}},
		},
	}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	idx := r.Test(map[string]interface{}{"kind": "a"})
	assert.Equal(t, 0, idx)
}
