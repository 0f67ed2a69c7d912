package plan

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/standards"
)

// baselineSteps are the package-agnostic fab/assembly stages every plan
// starts from before any SOE decision inserts or requires anything more
// specific. They carry the fixed source_rules tag spec.md §4.3 names.
var baselineSteps = []string{
	"INCOMING_INSPECTION",
	"FABRICATION",
	"ASSEMBLY",
	"FINAL_INSPECTION",
	"PACKAGE_SHIP",
}

const baselineSourceRule = "BASELINE_DEFAULT_STEP"

// Generate implements generatePlan(quote, soeRun) -> DatumPlan(version=1,
// state=draft, locked=false) per spec.md §4.3. Pure function: for fixed
// (quote, run) content, output is byte-identical.
//
// Decisions are walked in the run's existing deterministic order (pack_id
// ascending, rule declaration order, action declaration order) rather
// than re-sorted by decision id — sorting by the id's hash bytes would
// scatter a locked sub-sequence like clean->bake->cure across the plan,
// contradicting the contiguity spec.md §8's space-flight scenario
// requires. See DESIGN.md.
func Generate(quote Quote, run *soe.Run) (*DatumPlan, error) {
	p := &DatumPlan{
		QuoteID: quote.QuoteID,
		Version: 1,
		State:   StateDraft,
		Locked:  false,
		Tier:    quote.Tier,
	}

	seq := 0
	for _, stage := range baselineSteps {
		seq++
		step := Step{
			Type:        stage,
			Sequence:    seq,
			Required:    true,
			SourceRules: []string{baselineSourceRule},
		}
		id, err := computeStepID(step)
		if err != nil {
			return nil, err
		}
		step.StepID = id
		p.Steps = append(p.Steps, step)
	}

	if run != nil {
		p.SOERunID = run.SOERunID
		for _, d := range run.Decisions {
			p.SOEDecisionIDs = append(p.SOEDecisionIDs, d.ID)

			switch {
			case d.ObjectType == standards.ObjectStep && (d.Action == standards.ActionInsertStep || d.Action == standards.ActionRequire):
				seq++
				step := Step{
					Type:           d.Spec.StepType,
					Title:          d.Spec.StepTitle,
					Sequence:       seq,
					Required:       d.Action == standards.ActionRequire,
					LockedSequence: d.Spec.LockedSequence,
					LockGroup:      d.Spec.LockGroup,
					Parameters:     d.Spec.Parameters,
					Acceptance:     d.Spec.Acceptance,
					SourceRules:    []string{d.Why.RuleID},
					SOEDecisionID:  d.ID,
					SOEWhy:         d.Why.Text,
				}
				id, err := computeStepID(step)
				if err != nil {
					return nil, err
				}
				step.StepID = id
				p.Steps = append(p.Steps, step)

			case d.ObjectType == standards.ObjectTest && d.Action == standards.ActionRequire:
				p.Tests = append(p.Tests, Test{
					Name:          d.Spec.TestName,
					Required:      true,
					SourceRules:   []string{d.Why.RuleID},
					SOEDecisionID: d.ID,
				})

			case d.ObjectType == standards.ObjectEvidence && d.Action == standards.ActionRequire:
				p.EvidenceIntent = append(p.EvidenceIntent, EvidenceIntent{
					EvidenceClass: d.Spec.EvidenceClass,
					Retention:     d.Spec.Retention,
					SourceRules:   []string{d.Why.RuleID},
					SOEDecisionID: d.ID,
				})
			}
		}
	}

	for i := range p.Steps {
		if len(p.Steps[i].SourceRules) == 0 {
			return nil, fmt.Errorf("plan: step %d has empty source_rules", i)
		}
	}
	return p, nil
}
