package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func TestSimpleObjectMatch(t *testing.T) {
	m, err := Compile(map[string]interface{}{"message": "test"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Test(decode(map[string]interface{}{"message": "test"})))
	assert.False(t, m.Test(decode(map[string]interface{}{"message": "no"})))
	assert.False(t, m.Test(decode(map[string]interface{}{})))
}

func TestNestedObjectMatch(t *testing.T) {
	m, err := Compile(map[string]interface{}{
		"meta": map[string]interface{}{"domain": "en.wikipedia.org"},
	}, nil)
	require.NoError(t, err)

	assert.True(t, m.Test(decode(map[string]interface{}{
		"meta": map[string]interface{}{"domain": "en.wikipedia.org", "uri": "/x"},
	})))
	assert.False(t, m.Test(decode(map[string]interface{}{
		"meta": map[string]interface{}{"domain": "de.wikipedia.org"},
	})))
}

func TestUndefinedSentinel(t *testing.T) {
	m, err := Compile(map[string]interface{}{"tombstone": "undefined"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Test(decode(map[string]interface{}{"other": 1})))
	assert.False(t, m.Test(decode(map[string]interface{}{"tombstone": true})))
}

func TestArrayExistenceQuantifier(t *testing.T) {
	m, err := Compile(map[string]interface{}{
		"tags": []interface{}{"a", "c"},
	}, nil)
	require.NoError(t, err)

	assert.True(t, m.Test(decode(map[string]interface{}{
		"tags": []interface{}{"a", "b", "c", "d"},
	})))
	assert.False(t, m.Test(decode(map[string]interface{}{
		"tags": []interface{}{"a", "b"},
	})))
}

func TestRegexNamedCaptureBindings(t *testing.T) {
	m, err := Compile(map[string]interface{}{
		"uri": "/^\\/wiki\\/(?<page>.+)$/",
	}, nil)
	require.NoError(t, err)

	event := decode(map[string]interface{}{"uri": "/wiki/Special:Foo"})
	require.True(t, m.Test(event))

	b := m.Bind(event)
	sub, ok := b["uri"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Special:Foo", sub["page"])
}

func TestRegexMixedCaptureGroupsRejected(t *testing.T) {
	_, err := Compile(map[string]interface{}{
		"uri": "/^(?<page>.+)\\/(rev)$/",
	}, nil)
	require.Error(t, err)
	var invalid *InvalidMatch
	assert.ErrorAs(t, err, &invalid)
}

func TestScalarIdentity(t *testing.T) {
	m, err := Compile(map[string]interface{}{"code": float64(200)}, nil)
	require.NoError(t, err)

	assert.True(t, m.Test(decode(map[string]interface{}{"code": float64(200)})))
	assert.False(t, m.Test(decode(map[string]interface{}{"code": float64(201)})))
	assert.False(t, m.Test(decode(map[string]interface{}{"code": "200"})))
}

type stubEvaluator struct {
	result bool
	err    error
}

func (s stubEvaluator) Evaluate(ctx context.Context, expression string, tree map[string]interface{}, captures map[string]string) (bool, error) {
	return s.result, s.err
}

func TestExprNodeCompilesAndEvaluates(t *testing.T) {
	m, err := Compile(map[string]interface{}{
		"status": map[string]interface{}{"$expr": "event.status >= 500.0"},
	}, stubEvaluator{result: true})
	require.NoError(t, err)
	assert.True(t, m.Test(decode(map[string]interface{}{"status": float64(503)})))

	m, err = Compile(map[string]interface{}{
		"status": map[string]interface{}{"$expr": "event.status >= 500.0"},
	}, stubEvaluator{result: false})
	require.NoError(t, err)
	assert.False(t, m.Test(decode(map[string]interface{}{"status": float64(503)})))
}

func TestExprNodeRejectsMixedKeys(t *testing.T) {
	_, err := Compile(map[string]interface{}{
		"status": map[string]interface{}{"$expr": "true", "field": "x"},
	}, stubEvaluator{result: true})
	require.Error(t, err)
	var invalid *InvalidMatch
	assert.ErrorAs(t, err, &invalid)
}

func TestExprNodeAtRootRejectsMixedKeys(t *testing.T) {
	_, err := Compile(map[string]interface{}{
		"$expr":  "true",
		"status": float64(200),
	}, stubEvaluator{result: true})
	require.Error(t, err)
	var invalid *InvalidMatch
	assert.ErrorAs(t, err, &invalid)
}

func TestBindMirrorsMatchTree(t *testing.T) {
	m, err := Compile(map[string]interface{}{
		"message": "test",
		"count":   float64(3),
	}, nil)
	require.NoError(t, err)

	event := decode(map[string]interface{}{"message": "test", "count": float64(3)})
	require.True(t, m.Test(event))

	b := m.Bind(event)
	assert.Equal(t, "test", b["message"])
	assert.Equal(t, float64(3), b["count"])
}
