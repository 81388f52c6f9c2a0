package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid bool expression",
			expr:      `event.payload.status == "active"`,
			wantError: false,
		},
		{
			name:      "non-bool expression",
			expr:      `event.payload.amount`,
			wantError: true,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `undefinedVar == "test"`,
			wantError: true,
		},
		{
			name:      "capture comparison",
			expr:      `int(captures.new_rev) > int(captures.old_rev)`,
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.Validate(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	ctx := context.Background()
	tree := map[string]interface{}{
		"payload": map[string]interface{}{
			"status": "active",
			"amount": 150.0,
			"email":  "user@example.com",
		},
	}

	tests := []struct {
		name      string
		expr      string
		captures  map[string]string
		want      bool
		wantError bool
	}{
		{
			name: "simple equality true",
			expr: `event.payload.status == "active"`,
			want: true,
		},
		{
			name: "simple equality false",
			expr: `event.payload.status == "inactive"`,
			want: false,
		},
		{
			name: "numeric comparison true",
			expr: `event.payload.amount > 100.0`,
			want: true,
		},
		{
			name: "numeric comparison false",
			expr: `event.payload.amount > 200.0`,
			want: false,
		},
		{
			name: "contains true",
			expr: `event.payload.email.contains("@example.com")`,
			want: true,
		},
		{
			name:     "capture comparison true",
			expr:     `int(captures.new_rev) > int(captures.old_rev)`,
			captures: map[string]string{"new_rev": "7", "old_rev": "3"},
			want:     true,
		},
		{
			name:     "capture comparison false",
			expr:     `int(captures.new_rev) > int(captures.old_rev)`,
			captures: map[string]string{"new_rev": "1", "old_rev": "3"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eval.Evaluate(ctx, tt.expr, tree, tt.captures)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, result)
			}
		})
	}
}

func TestExprExamplesValidate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range ExprExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.Validate(expr), "example %q should validate: %s", name, expr)
		})
	}
}
