// Package compliance joins plan artifacts back to the rules, clauses,
// and profile layers that produced them, and renders the resulting
// traceability into a hashed compliance report.
package compliance

import (
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/soe"
)

// Entry is one traced plan artifact: trace(item) per spec.md §4.6.
type Entry struct {
	ObjectType    string             `json:"object_type"`
	ObjectID      string             `json:"object_id"`
	RuleID        string             `json:"rule_id"`
	PackID        string             `json:"pack_id"`
	Citations     []string           `json:"citations,omitempty"`
	ProfileSource *soe.ProfileSource `json:"profile_source,omitempty"`
	DecisionID    string             `json:"decision_id"`
}

// Trace builds one Entry for every step, test, and evidence item in p
// that carries an soe_decision_id, joining it back to the originating
// decision in run.
func Trace(p *plan.DatumPlan, run *soe.Run) []Entry {
	byID := make(map[string]soe.Decision, len(run.Decisions))
	for _, d := range run.Decisions {
		byID[d.ID] = d
	}

	var entries []Entry
	add := func(objectType, objectID, decisionID string) {
		if decisionID == "" {
			return
		}
		d, ok := byID[decisionID]
		if !ok {
			return
		}
		entries = append(entries, Entry{
			ObjectType:    objectType,
			ObjectID:      objectID,
			RuleID:        d.Why.RuleID,
			PackID:        d.Why.PackID,
			Citations:     d.Why.Citations,
			ProfileSource: d.ProfileSource,
			DecisionID:    d.ID,
		})
	}

	for _, s := range p.Steps {
		add("step", s.StepID, s.SOEDecisionID)
	}
	for _, t := range p.Tests {
		add("test", t.Name, t.SOEDecisionID)
	}
	for _, e := range p.EvidenceIntent {
		add("evidence", e.EvidenceClass, e.SOEDecisionID)
	}
	return entries
}
