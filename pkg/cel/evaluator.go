package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and runs the "$expr" escape hatch a match tree node
// can use when the declarative match grammar (spec.md §4.1) can't express
// a comparison — e.g. numeric range checks or cross-field comparisons.
// The expression is given the whole event tree under "event" and the
// capture groups bound by regex nodes anywhere in the same match tree under
// "captures", and must evaluate to a bool.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.DynType),
		cel.Variable("captures", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// Validate compiles the expression and confirms it type-checks to bool,
// so a malformed $expr node is rejected at rule-load time rather than
// on the first matching event.
func (e *Evaluator) Validate(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("$expr must return bool, got %v", ast.OutputType())
	}
	return nil
}

// Evaluate runs a compiled $expr node against one event tree and the
// capture groups bound so far by the enclosing match tree.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, tree map[string]interface{}, captures map[string]string) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile $expr: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("$expr must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	if captures == nil {
		captures = map[string]string{}
	}

	vars := map[string]interface{}{
		"event":    tree,
		"captures": captures,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate $expr: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("$expr did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// CompileExpression exposes the raw CEL program for callers (the match
// compiler) that want to pre-compile a node once at rule-load time and
// re-evaluate it per event without recompiling.
func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile $expr: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}
