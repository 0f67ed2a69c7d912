package plan

import "reflect"

// StepDiff is one changed, added, or removed step between two plan
// versions.
type StepDiff struct {
	StepID           string `json:"step_id"`
	Kind             string `json:"kind"` // added, removed, modified
	Before           *Step  `json:"before,omitempty"`
	After            *Step  `json:"after,omitempty"`
	RequiredOverride bool   `json:"required_override"`
}

// TestDiff is one changed, added, or removed test between two plan
// versions.
type TestDiff struct {
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Before           *Test  `json:"before,omitempty"`
	After            *Test  `json:"after,omitempty"`
	RequiredOverride bool   `json:"required_override"`
}

// EvidenceDiff is one changed, added, or removed evidence intent
// between two plan versions.
type EvidenceDiff struct {
	EvidenceClass    string          `json:"evidence_class"`
	Kind             string          `json:"kind"`
	Before           *EvidenceIntent `json:"before,omitempty"`
	After            *EvidenceIntent `json:"after,omitempty"`
	RequiredOverride bool            `json:"required_override"`
}

// Diff is the structured, deterministic comparison of two versions of
// the same plan.
type Diff struct {
	PlanID      string         `json:"plan_id"`
	FromVersion int            `json:"from_version"`
	ToVersion   int            `json:"to_version"`
	Steps       []StepDiff     `json:"steps,omitempty"`
	Tests       []TestDiff     `json:"tests,omitempty"`
	Evidence    []EvidenceDiff `json:"evidence,omitempty"`
}

// overriddenConstraints collects every Override.Constraint recorded
// anywhere in to's edit_metadata, so a diff entry can be tagged with
// whether the underlying change was ever justified by an override.
func overriddenConstraints(to *DatumPlan) map[string]bool {
	out := make(map[string]bool)
	for _, em := range to.EditMetadata {
		for _, ov := range em.Overrides {
			out[ov.Constraint] = true
		}
	}
	return out
}

// ComputeDiff implements diff(plan_id, v1, v2). diff(plan, v, v) = ∅ per
// spec.md §8: two identical versions produce a Diff with no entries.
// Every entry is tagged with whether the change was covered by an
// override recorded in to's edit_metadata, per spec.md §4.4's
// override-justification trail.
func ComputeDiff(from, to *DatumPlan) Diff {
	d := Diff{PlanID: to.PlanID, FromVersion: from.Version, ToVersion: to.Version}
	overridden := overriddenConstraints(to)

	beforeByID := make(map[string]Step, len(from.Steps))
	for _, s := range from.Steps {
		beforeByID[s.StepID] = s
	}
	afterByID := make(map[string]Step, len(to.Steps))
	for _, s := range to.Steps {
		afterByID[s.StepID] = s
	}

	for _, s := range from.Steps {
		after, ok := afterByID[s.StepID]
		if !ok {
			before := s
			d.Steps = append(d.Steps, StepDiff{StepID: s.StepID, Kind: "removed", Before: &before, RequiredOverride: overridden[s.StepID]})
			continue
		}
		if !stepsEqual(s, after) {
			before, afterCopy := s, after
			d.Steps = append(d.Steps, StepDiff{StepID: s.StepID, Kind: "modified", Before: &before, After: &afterCopy, RequiredOverride: overridden[s.StepID]})
		}
	}
	for _, s := range to.Steps {
		if _, ok := beforeByID[s.StepID]; !ok {
			after := s
			d.Steps = append(d.Steps, StepDiff{StepID: s.StepID, Kind: "added", After: &after, RequiredOverride: overridden[s.StepID]})
		}
	}

	beforeTests := make(map[string]Test, len(from.Tests))
	for _, t := range from.Tests {
		beforeTests[t.Name] = t
	}
	afterTests := make(map[string]Test, len(to.Tests))
	for _, t := range to.Tests {
		afterTests[t.Name] = t
	}
	for _, t := range from.Tests {
		after, ok := afterTests[t.Name]
		if !ok {
			before := t
			d.Tests = append(d.Tests, TestDiff{Name: t.Name, Kind: "removed", Before: &before, RequiredOverride: overridden[t.Name]})
			continue
		}
		if !testsEqual(t, after) {
			before, afterCopy := t, after
			d.Tests = append(d.Tests, TestDiff{Name: t.Name, Kind: "modified", Before: &before, After: &afterCopy, RequiredOverride: overridden[t.Name]})
		}
	}
	for _, t := range to.Tests {
		if _, ok := beforeTests[t.Name]; !ok {
			after := t
			d.Tests = append(d.Tests, TestDiff{Name: t.Name, Kind: "added", After: &after, RequiredOverride: overridden[t.Name]})
		}
	}

	beforeEvidence := make(map[string]EvidenceIntent, len(from.EvidenceIntent))
	for _, e := range from.EvidenceIntent {
		beforeEvidence[e.EvidenceClass] = e
	}
	afterEvidence := make(map[string]EvidenceIntent, len(to.EvidenceIntent))
	for _, e := range to.EvidenceIntent {
		afterEvidence[e.EvidenceClass] = e
	}
	for _, e := range from.EvidenceIntent {
		after, ok := afterEvidence[e.EvidenceClass]
		if !ok {
			before := e
			d.Evidence = append(d.Evidence, EvidenceDiff{EvidenceClass: e.EvidenceClass, Kind: "removed", Before: &before, RequiredOverride: overridden[e.EvidenceClass]})
			continue
		}
		if !evidenceEqual(e, after) {
			before, afterCopy := e, after
			d.Evidence = append(d.Evidence, EvidenceDiff{EvidenceClass: e.EvidenceClass, Kind: "modified", Before: &before, After: &afterCopy, RequiredOverride: overridden[e.EvidenceClass]})
		}
	}
	for _, e := range to.EvidenceIntent {
		if _, ok := beforeEvidence[e.EvidenceClass]; !ok {
			after := e
			d.Evidence = append(d.Evidence, EvidenceDiff{EvidenceClass: e.EvidenceClass, Kind: "added", After: &after, RequiredOverride: overridden[e.EvidenceClass]})
		}
	}

	return d
}

func testsEqual(a, b Test) bool {
	return a.Required == b.Required && stringsEqual(a.SourceRules, b.SourceRules)
}

func evidenceEqual(a, b EvidenceIntent) bool {
	return a.Format == b.Format && a.Retention == b.Retention && stringsEqual(a.SourceRules, b.SourceRules)
}

func stringsEqual(a, b []string) bool {
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

func stepsEqual(a, b Step) bool {
	return a.Sequence == b.Sequence &&
		a.Type == b.Type &&
		a.Title == b.Title &&
		a.Acceptance == b.Acceptance &&
		a.LockedSequence == b.LockedSequence &&
		mapsEqual(a.Parameters, b.Parameters)
}

// mapsEqual compares step parameters by value. Parameters arrive as
// decoded JSON and may hold nested slices or maps, which are not
// comparable with ==; reflect.DeepEqual handles them without risking a
// panic. A nil map and an empty map both mean "no parameters" and
// compare equal.
func mapsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
