package soe

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// FormulaEvaluator compiles and caches CEL cost-modifier formulas. A
// formula is a sandboxed expression over the SOE evaluation context; it
// is never given access to the clock, the filesystem, or network I/O,
// only the "ctx" variable the engine passes to ruleexpr.Eval.
type FormulaEvaluator struct {
	env *cel.Env

	mu  sync.RWMutex
	cache map[string]cel.Program
}

// NewFormulaEvaluator builds a CEL environment exposing a single dynamic
// "ctx" variable, matching the evaluation context shape ruleexpr already
// uses for rule triggers.
func NewFormulaEvaluator() (*FormulaEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("ctx", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("soe: create CEL environment: %w", err)
	}
	return &FormulaEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Eval compiles formula on first use (caching the program by its literal
// string), evaluates it against ctx, and requires the result be numeric.
// A non-numeric result is returned as a PACK_NOT_FOUND error, which fails
// the SOE evaluation, rather than silently coerced to zero.
func (f *FormulaEvaluator) Eval(formula string, ctx map[string]any) (float64, error) {
	prg, err := f.program(formula)
	if err != nil {
		return 0, err
	}

	out, _, err := prg.Eval(map[string]any{"ctx": ctx})
	if err != nil {
		return 0, domainerr.WithDetail(domainerr.CodePackNotFound,
			"cost modifier formula evaluation failed", map[string]string{
				"formula": formula,
				"error":   err.Error(),
			})
	}

	switch v := out.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, domainerr.WithDetail(domainerr.CodePackNotFound,
			"cost modifier formula did not evaluate to a number",
			map[string]string{"formula": formula})
	}
}

func (f *FormulaEvaluator) program(formula string) (cel.Program, error) {
	f.mu.RLock()
	prg, ok := f.cache[formula]
	f.mu.RUnlock()
	if ok {
		return prg, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if prg, ok = f.cache[formula]; ok {
		return prg, nil
	}

	ast, issues := f.env.Compile(formula)
	if issues != nil && issues.Err() != nil {
		return nil, domainerr.WithDetail(domainerr.CodePackNotFound,
			"cost modifier formula failed to compile",
			map[string]string{"formula": formula, "error": issues.Err().Error()})
	}
	prg, err := f.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("soe: build CEL program: %w", err)
	}
	f.cache[formula] = prg
	return prg, nil
}
