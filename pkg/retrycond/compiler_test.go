package retrycond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryOnStatusWildcard(t *testing.T) {
	c, err := Compile(map[string]interface{}{"status": []interface{}{"50x"}})
	require.NoError(t, err)

	assert.True(t, c.Classify(Result{"status": float64(500)}))
	assert.True(t, c.Classify(Result{"status": float64(509)}))
	assert.False(t, c.Classify(Result{"status": float64(510)}))
	assert.False(t, c.Classify(Result{"status": float64(404)}))
}

func TestDefaultIgnoreStatus(t *testing.T) {
	c, err := Compile(map[string]interface{}{"status": []interface{}{float64(412)}})
	require.NoError(t, err)

	assert.True(t, c.Classify(Result{"status": float64(412)}))
	assert.False(t, c.Classify(Result{"status": float64(200)}))
}

func TestStatusExactNumericLiteral(t *testing.T) {
	c, err := Compile(map[string]interface{}{"status": float64(404)})
	require.NoError(t, err)

	assert.True(t, c.Classify(Result{"status": float64(404)}))
	assert.False(t, c.Classify(Result{"status": float64(405)}))
}

func TestFieldsCombineWithAND(t *testing.T) {
	c, err := Compile(map[string]interface{}{
		"status": float64(409),
		"body":   map[string]interface{}{"reason": "conflict"},
	})
	require.NoError(t, err)

	assert.True(t, c.Classify(Result{
		"status": float64(409),
		"body":   map[string]interface{}{"reason": "conflict"},
	}))
	assert.False(t, c.Classify(Result{
		"status": float64(409),
		"body":   map[string]interface{}{"reason": "other"},
	}))
}

func TestMissingFieldFailsClassification(t *testing.T) {
	c, err := Compile(map[string]interface{}{"status": float64(500)})
	require.NoError(t, err)

	assert.False(t, c.Classify(Result{}))
}

func TestInvalidWildcardPattern(t *testing.T) {
	_, err := Compile(map[string]interface{}{"status": "5yx"})
	require.Error(t, err)
}

func TestStructuralEqualityIgnoresKeyOrder(t *testing.T) {
	c, err := Compile(map[string]interface{}{
		"body": map[string]interface{}{"a": float64(1), "b": float64(2)},
	})
	require.NoError(t, err)

	assert.True(t, c.Classify(Result{
		"body": map[string]interface{}{"b": float64(2), "a": float64(1)},
	}))
}
