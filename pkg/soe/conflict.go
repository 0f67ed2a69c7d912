package soe

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/standards"
)

type objectKey struct {
	objectType standards.ObjectType
	objectID   string
}

// resolveConflicts detects contradictory decisions on the same object and
// applies the governing profile's conflict_policy. Decisions dropped by
// PARENT_WINS/CHILD_WINS are removed from the returned slice; order among
// the survivors is otherwise preserved.
func resolveConflicts(decisions []Decision, closure map[string]*profiles.StandardsProfile) ([]Decision, error) {
	byObject := make(map[objectKey][]int)
	for i, d := range decisions {
		k := objectKey{d.ObjectType, d.ObjectID}
		byObject[k] = append(byObject[k], i)
	}

	dropped := make(map[string]bool)
	for _, idxs := range byObject {
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				d1, d2 := decisions[idxs[a]], decisions[idxs[b]]
				if !contradictory(d1.Action, d2.Action) {
					continue
				}
				drop, err := applyConflictPolicy(d1, d2, closure)
				if err != nil {
					return nil, err
				}
				if drop != "" {
					dropped[drop] = true
				}
			}
		}
	}

	if len(dropped) == 0 {
		return decisions, nil
	}
	out := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if !dropped[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// contradictory reports whether two actions on the same object directly
// conflict. REQUIRE and PROHIBIT on the same object are the canonical
// case spec.md §4.2 step 6 names.
func contradictory(a, b standards.Action) bool {
	pair := func(x, y standards.Action) bool {
		return x == standards.ActionRequire && y == standards.ActionProhibit
	}
	return pair(a, b) || pair(b, a)
}

// applyConflictPolicy returns the id of the decision to drop under
// PARENT_WINS or CHILD_WINS. Under ERROR, or when the child's profile
// sets no policy, it returns "" and a RULE_CONFLICT error; a conflict is
// never tolerated with both decisions kept.
func applyConflictPolicy(d1, d2 Decision, closure map[string]*profiles.StandardsProfile) (string, error) {
	parent, child := d1, d2
	if parent.ProfileSource != nil && child.ProfileSource != nil && parent.ProfileSource.Layer > child.ProfileSource.Layer {
		parent, child = child, parent
	}

	policy := profiles.ConflictError
	if child.ProfileSource != nil {
		if p := closure[child.ProfileSource.ProfileID]; p != nil && p.ConflictPolicy != "" {
			policy = p.ConflictPolicy
		}
	}

	switch policy {
	case profiles.ConflictParentWins:
		return child.ID, nil
	case profiles.ConflictChildWins:
		return parent.ID, nil
	default:
		return "", domainerr.WithDetail(domainerr.CodeRuleConflict,
			fmt.Sprintf("conflicting decisions on %s %s", d1.ObjectType, d1.ObjectID),
			map[string]any{"decision_a": d1.ID, "decision_b": d2.ID})
	}
}
