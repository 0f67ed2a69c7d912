package plan

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// EditKind is the closed set of edit operations the editor accepts.
type EditKind string

const (
	EditRemoveStep     EditKind = "REMOVE_STEP"
	EditReorderSteps   EditKind = "REORDER_STEPS"
	EditModifyStep     EditKind = "MODIFY_STEP"
	EditRemoveEvidence EditKind = "REMOVE_EVIDENCE"
	EditRemoveTest     EditKind = "REMOVE_TEST"
)

// EditOp is one requested change. Exactly the fields relevant to Kind are
// populated.
type EditOp struct {
	Kind EditKind `json:"kind"`

	StepID   string   `json:"step_id,omitempty"`  // REMOVE_STEP, MODIFY_STEP
	NewOrder []string `json:"new_order,omitempty"` // REORDER_STEPS: full list of step ids in the desired order

	Parameters map[string]any `json:"parameters,omitempty"` // MODIFY_STEP
	Acceptance string         `json:"acceptance,omitempty"` // MODIFY_STEP

	EvidenceClass string `json:"evidence_class,omitempty"` // REMOVE_EVIDENCE

	TestName string `json:"test_name,omitempty"` // REMOVE_TEST
}

// Edit implements edit(plan_id, edits, reason, overrides?) per spec.md
// §4.4: load latest (caller's job, plan is already the latest draft),
// validate override coverage for any SOE-locked item touched, write a
// new version N+1 with edit_metadata appended.
func Edit(plan *DatumPlan, ops []EditOp, reason string, overrides []Override, editedBy, editedAt string) (*DatumPlan, error) {
	if err := RequireEditable(plan); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, domainerr.New(domainerr.CodeOverrideMissingReason, "edit reason must not be empty")
	}

	overrideByConstraint := make(map[string]Override, len(overrides))
	for _, ov := range overrides {
		overrideByConstraint[ov.Constraint] = ov
	}
	requireOverride := func(constraint string) error {
		ov, ok := overrideByConstraint[constraint]
		if !ok {
			return domainerr.WithDetail(domainerr.CodePlanInvalidEdit,
				fmt.Sprintf("edit touches SOE-locked item %q without an override", constraint),
				map[string]string{"constraint": constraint})
		}
		if ov.Reason == "" {
			return domainerr.New(domainerr.CodeOverrideMissingReason,
				fmt.Sprintf("override for %q has an empty reason", constraint))
		}
		return nil
	}

	steps := append([]Step(nil), plan.Steps...)
	tests := append([]Test(nil), plan.Tests...)
	evidence := append([]EvidenceIntent(nil), plan.EvidenceIntent...)

	for _, op := range ops {
		switch op.Kind {
		case EditRemoveStep:
			idx := findStep(steps, op.StepID)
			if idx < 0 {
				return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "step not found", map[string]string{"step_id": op.StepID})
			}
			if isSOELocked(steps[idx]) {
				if err := requireOverride(op.StepID); err != nil {
					return nil, err
				}
			}
			steps = append(steps[:idx], steps[idx+1:]...)

		case EditReorderSteps:
			reordered, err := reorderSteps(steps, op.NewOrder, requireOverride)
			if err != nil {
				return nil, err
			}
			steps = reordered

		case EditModifyStep:
			idx := findStep(steps, op.StepID)
			if idx < 0 {
				return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "step not found", map[string]string{"step_id": op.StepID})
			}
			steps[idx].Parameters = op.Parameters
			steps[idx].Acceptance = op.Acceptance

		case EditRemoveEvidence:
			idx := findEvidence(evidence, op.EvidenceClass)
			if idx < 0 {
				return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "evidence class not found", map[string]string{"evidence_class": op.EvidenceClass})
			}
			if evidence[idx].SOEDecisionID != "" {
				if err := requireOverride(op.EvidenceClass); err != nil {
					return nil, err
				}
			}
			evidence = append(evidence[:idx], evidence[idx+1:]...)

		case EditRemoveTest:
			idx := findTest(tests, op.TestName)
			if idx < 0 {
				return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "test not found", map[string]string{"test_name": op.TestName})
			}
			if tests[idx].SOEDecisionID != "" {
				if err := requireOverride(op.TestName); err != nil {
					return nil, err
				}
			}
			tests = append(tests[:idx], tests[idx+1:]...)

		default:
			return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "unknown edit kind", map[string]string{"kind": string(op.Kind)})
		}
	}

	next := *plan
	next.Version = plan.Version + 1
	next.ParentVersion = plan.Version
	next.State = StateDraft
	next.Locked = false
	next.Steps = steps
	next.Tests = tests
	next.EvidenceIntent = evidence
	next.EditMetadata = append(append([]EditMetadata(nil), plan.EditMetadata...), EditMetadata{
		EditedBy:   editedBy,
		EditedAt:   editedAt,
		EditReason: reason,
		Overrides:  overrides,
	})
	return &next, nil
}

func isSOELocked(s Step) bool {
	return s.SOEDecisionID != "" || s.LockedSequence
}

func findStep(steps []Step, id string) int {
	for i, s := range steps {
		if s.StepID == id {
			return i
		}
	}
	return -1
}

func findTest(tests []Test, name string) int {
	for i, t := range tests {
		if t.Name == name {
			return i
		}
	}
	return -1
}

func findEvidence(items []EvidenceIntent, class string) int {
	for i, e := range items {
		if e.EvidenceClass == class {
			return i
		}
	}
	return -1
}

// reorderSteps applies newOrder (a full permutation of step ids) and
// recomputes Sequence, but refuses any change that disturbs a locked
// step's position or splits a lock group's contiguous block unless
// every disturbed step has a covering override.
func reorderSteps(steps []Step, newOrder []string, requireOverride func(string) error) ([]Step, error) {
	if len(newOrder) != len(steps) {
		return nil, domainerr.New(domainerr.CodePlanInvalidEdit, "reorder must include every existing step exactly once")
	}
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.StepID] = s
	}

	reordered := make([]Step, 0, len(newOrder))
	for i, id := range newOrder {
		s, ok := byID[id]
		if !ok {
			return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit, "reorder references unknown step id", map[string]string{"step_id": id})
		}
		s.Sequence = i + 1
		reordered = append(reordered, s)
	}

	// Every locked step that either changes position relative to the
	// other locked steps, or whose lock group stops forming a
	// contiguous block, needs its own override.
	disturbed := disturbedLockedSteps(steps, reordered)
	for _, id := range disturbed {
		if err := requireOverride(id); err != nil {
			return nil, err
		}
	}
	return reordered, nil
}

// disturbedLockedSteps reports, in deterministic step-id order, every
// locked step whose ordering guarantee the new arrangement violates:
// its position among the other locked steps changed, or a step outside
// its lock group was spliced into what must stay a contiguous block.
func disturbedLockedSteps(before, after []Step) []string {
	lockedOrder := func(list []Step) []string {
		var ids []string
		for _, s := range list {
			if isSOELocked(s) {
				ids = append(ids, s.StepID)
			}
		}
		return ids
	}
	lockGroupOf := make(map[string]string)
	for _, s := range before {
		if isSOELocked(s) {
			lockGroupOf[s.StepID] = s.LockGroup
		}
	}

	groupBlocks := func(list []Step) map[string][]string {
		blocks := make(map[string][]string)
		for _, s := range list {
			group, ok := lockGroupOf[s.StepID]
			if !ok || group == "" {
				continue
			}
			blocks[group] = append(blocks[group], s.StepID)
		}
		return blocks
	}
	// isContiguous reports whether every member of group occupies an
	// unbroken run of positions in list, with nothing else interleaved.
	isContiguous := func(list []Step, group string) bool {
		first, last, count := -1, -1, 0
		for i, s := range list {
			if lockGroupOf[s.StepID] != group {
				continue
			}
			if first == -1 {
				first = i
			}
			last = i
			count++
		}
		return last-first+1 == count
	}

	disturbedSet := make(map[string]bool)

	if !sameOrder(lockedOrder(before), lockedOrder(after)) {
		for _, id := range lockedOrder(before) {
			disturbedSet[id] = true
		}
	}

	beforeBlocks := groupBlocks(before)
	afterBlocks := groupBlocks(after)
	for group, ids := range beforeBlocks {
		if !sameOrder(ids, afterBlocks[group]) || !isContiguous(after, group) {
			for _, id := range ids {
				disturbedSet[id] = true
			}
		}
	}

	var disturbed []string
	for _, s := range before {
		if disturbedSet[s.StepID] {
			disturbed = append(disturbed, s.StepID)
		}
	}
	return disturbed
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
