//go:build property
// +build property

package ruleexpr

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEval_NeverPanicsAndIsDeterministic covers spec §4.1's "must be
// deterministic; no I/O, no clock, no randomness" requirement and §8's
// "comparison of incompatible types yields false, never an error"
// boundary across arbitrary leaf expressions and context values.
func TestEval_NeverPanicsAndIsDeterministic(t *testing.T) {
	ops := []Op{
		OpEquals, OpNotEquals, OpContains, OpNotContain,
		OpGT, OpGTE, OpLT, OpLTE, OpIn, OpNotIn, OpExists, OpNotExists,
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Eval is deterministic and never panics", prop.ForAll(
		func(field string, opIdx int, sval string, ival int, present bool) bool {
			op := ops[opIdx%len(ops)]
			ctx := Context{}
			if present {
				if ival%2 == 0 {
					ctx[field] = sval
				} else {
					ctx[field] = ival
				}
			}
			expr := Expr{Field: field, Op: op, Value: sval}

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Eval panicked: %v", r)
				}
			}()

			r1 := Eval(expr, ctx)
			r2 := Eval(expr, ctx)
			return r1 == r2
		},
		gen.AlphaString(),
		gen.IntRange(0, 100),
		gen.AlphaString(),
		gen.IntRange(-1000, 1000),
		gen.Bool(),
	))

	properties.Property("empty all matches, empty any does not", prop.ForAll(
		func(ctxKey, ctxVal string) bool {
			ctx := Context{ctxKey: ctxVal}
			return Eval(Expr{All: []Expr{}}, ctx) && !Eval(Expr{Any: []Expr{}}, ctx)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("missing field: exists=false, not_exists=true", prop.ForAll(
		func(field string) bool {
			ctx := Context{}
			return !Eval(Expr{Field: field, Op: OpExists}, ctx) &&
				Eval(Expr{Field: field, Op: OpNotExists}, ctx)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
