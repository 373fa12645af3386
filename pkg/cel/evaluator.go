package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Event is the activation a change-event filter is evaluated against.
type Event struct {
	Kind          string
	Competitor    string
	Product       map[string]interface{}
	OldValue      float64
	NewValue      float64
	ChangePercent float64
	NewTraction   bool
}

func (ev Event) vars() map[string]interface{} {
	product := ev.Product
	if product == nil {
		product = map[string]interface{}{}
	}
	return map[string]interface{}{
		"kind":           ev.Kind,
		"competitor":     ev.Competitor,
		"product":        product,
		"old_value":      ev.OldValue,
		"new_value":      ev.NewValue,
		"change_percent": ev.ChangePercent,
		"new_traction":   ev.NewTraction,
	}
}

type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("competitor", cel.StringType),
		cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("old_value", cel.DoubleType),
		cel.Variable("new_value", cel.DoubleType),
		cel.Variable("change_percent", cel.DoubleType),
		cel.Variable("new_traction", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// CompileFilter compiles a boolean filter once and caches the program.
func (e *Evaluator) CompileFilter(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, ev Event) (bool, error) {
	program, err := e.CompileFilter(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, ev.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
