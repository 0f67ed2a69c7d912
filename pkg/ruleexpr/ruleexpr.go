// Package ruleexpr implements the recursive rule-expression tree and its
// deterministic, side-effect-free evaluator (spec §4.1).
//
// A RuleExpr is a closed tagged union: exactly one of a leaf comparison or
// a composite (all/any/none) of sub-expressions is populated. Evaluation
// never performs I/O, never reads the clock, and never errors — an
// incompatible comparison simply evaluates to false, so that a malformed
// rule degrades to "does not match" rather than aborting an SOE run.
package ruleexpr

import (
	"math"
	"strings"
)

// Op is a leaf comparison operator.
type Op string

const (
	OpEquals     Op = "equals"
	OpNotEquals  Op = "not_equals"
	OpContains   Op = "contains"
	OpNotContain Op = "not_contains"
	OpGT         Op = "gt"
	OpGTE        Op = "gte"
	OpLT         Op = "lt"
	OpLTE        Op = "lte"
	OpIn         Op = "in"
	OpNotIn      Op = "not_in"
	OpExists     Op = "exists"
	OpNotExists  Op = "not_exists"
)

// Expr is the recursive rule expression. Exactly one of the leaf fields
// (Field/Op/Value) or the composite fields (All/Any/None) is set.
type Expr struct {
	// Leaf form.
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	// Composite form.
	All  []Expr `json:"all,omitempty"`
	Any  []Expr `json:"any,omitempty"`
	None []Expr `json:"none,omitempty"`
}

// Context is the flat(ish) evaluation context: a map from top-level keys to
// primitive scalars, arrays of scalars, or nested maps reachable via dotted
// paths.
type Context map[string]any

// Eval evaluates expr against ctx per spec §4.1 semantics.
func Eval(expr Expr, ctx Context) bool {
	if isComposite(expr) {
		return evalComposite(expr, ctx)
	}
	return evalLeaf(expr, ctx)
}

func isComposite(e Expr) bool {
	return e.All != nil || e.Any != nil || e.None != nil
}

func evalComposite(e Expr, ctx Context) bool {
	switch {
	case e.All != nil:
		for _, sub := range e.All {
			if !Eval(sub, ctx) {
				return false
			}
		}
		return true
	case e.Any != nil:
		for _, sub := range e.Any {
			if Eval(sub, ctx) {
				return true
			}
		}
		return false
	case e.None != nil:
		for _, sub := range e.None {
			if Eval(sub, ctx) {
				return false
			}
		}
		return true
	}
	return false
}

func evalLeaf(e Expr, ctx Context) bool {
	val, found := resolvePath(ctx, e.Field)

	switch e.Op {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	}

	if !found {
		// Missing field under any comparator other than exists/not_exists
		// is a non-match, never an error.
		return false
	}

	switch e.Op {
	case OpEquals:
		return looseEquals(val, e.Value)
	case OpNotEquals:
		return !looseEquals(val, e.Value)
	case OpContains:
		return contains(val, e.Value)
	case OpNotContain:
		return !contains(val, e.Value)
	case OpGT:
		ok, cmp := compareNumeric(val, e.Value)
		return ok && cmp > 0
	case OpGTE:
		ok, cmp := compareNumeric(val, e.Value)
		return ok && cmp >= 0
	case OpLT:
		ok, cmp := compareNumeric(val, e.Value)
		return ok && cmp < 0
	case OpLTE:
		ok, cmp := compareNumeric(val, e.Value)
		return ok && cmp <= 0
	case OpIn:
		return inList(e.Value, val)
	case OpNotIn:
		return !inList(e.Value, val)
	}
	return false
}

// resolvePath resolves a dotted path against ctx. found is true iff the
// path resolves to a defined value, including an empty array or an empty
// string — only a wholly absent key, or a path that walks through a
// non-map value, is "not found".
func resolvePath(ctx Context, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = map[string]any(ctx)
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, exists := m[p]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func looseEquals(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as == bs
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		ns, ok := needle.(string)
		if !ok {
			return false
		}
		return strings.Contains(h, ns)
	case []any:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func inList(list, needle any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEquals(item, needle) {
			return true
		}
	}
	return false
}

// compareNumeric coerces both operands to float64. ok is false if either
// operand is not an integer or finite float, in which case the comparison
// must be treated as a non-match by the caller.
func compareNumeric(a, b any) (ok bool, cmp int) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok || math.IsNaN(af) || math.IsNaN(bf) || math.IsInf(af, 0) || math.IsInf(bf, 0) {
		return false, 0
	}
	switch {
	case af < bf:
		return true, -1
	case af > bf:
		return true, 1
	default:
		return true, 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
