package plan

import "sort"

// Objective is the optimizer's reordering goal. Each only ever reorders
// non-locked steps; every locked sequence block, every SOE-given
// sequence value, and every declared dependency order is preserved.
type Objective string

const (
	ObjectiveThroughput Objective = "throughput"
	ObjectiveCost       Objective = "cost"
	ObjectiveResource   Objective = "resource"
)

// costRank ranks non-locked step types by a simple cost proxy so cost
// and resource objectives have something concrete to minimize without
// pricing individual line items, which spec.md §1 treats as an external
// collaborator.
var costRank = map[string]int{
	"INCOMING_INSPECTION": 0,
	"FABRICATION":         2,
	"ASSEMBLY":            3,
	"FINAL_INSPECTION":    1,
	"PACKAGE_SHIP":        4,
}

// Optimize reorders only the plan's non-locked steps to minimize
// objective, creating a new version. Locked blocks stay put as
// contiguous segments at their original position; non-locked steps are
// stable-sorted among themselves and interleaved back into the
// unchanged locked positions.
func Optimize(plan *DatumPlan, objective Objective, editedBy, editedAt string) (*DatumPlan, error) {
	if err := RequireEditable(plan); err != nil {
		return nil, err
	}

	type slot struct {
		step   Step
		locked bool
	}
	slots := make([]slot, len(plan.Steps))
	var movable []int
	for i, s := range plan.Steps {
		slots[i] = slot{step: s, locked: isSOELocked(s)}
		if !slots[i].locked {
			movable = append(movable, i)
		}
	}

	ordered := make([]int, len(movable))
	copy(ordered, movable)
	switch objective {
	case ObjectiveCost, ObjectiveResource:
		sort.SliceStable(ordered, func(a, b int) bool {
			return rankOf(slots[ordered[a]].step.Type) < rankOf(slots[ordered[b]].step.Type)
		})
	default: // throughput: preserve existing relative order
	}

	next := *plan
	next.Version = plan.Version + 1
	next.ParentVersion = plan.Version
	next.State = StateDraft
	next.Locked = false

	newSteps := make([]Step, len(plan.Steps))
	for pos, srcIdx := range movable {
		s := slots[ordered[pos]].step
		newSteps[srcIdx] = s
	}
	for i, sl := range slots {
		if sl.locked {
			newSteps[i] = sl.step
		}
	}
	for i := range newSteps {
		newSteps[i].Sequence = i + 1
	}
	next.Steps = newSteps
	next.EditMetadata = append(append([]EditMetadata(nil), plan.EditMetadata...), EditMetadata{
		EditedBy:   editedBy,
		EditedAt:   editedAt,
		EditReason: "optimize:" + string(objective),
	})
	return &next, nil
}

func rankOf(stepType string) int {
	if r, ok := costRank[stepType]; ok {
		return r
	}
	return len(costRank)
}
