package compliance

import (
	"strings"
	"testing"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/standards"
)

func approvedPlanWithRun() (*plan.DatumPlan, *soe.Run) {
	run := &soe.Run{
		SOERunID:    "run-1",
		ActivePacks: []string{"NASA_POLYMERICS"},
		ProfileStack: []soe.ProfileStackEntry{
			{ProfileID: "domain.space", ProfileType: "DOMAIN", Layer: 1},
		},
		Decisions: []soe.Decision{
			{
				ID: "dec1", Action: standards.ActionInsertStep, ObjectType: standards.ObjectStep, ObjectID: "s1",
				Why: soe.Why{RuleID: "RULE_1", PackID: "NASA_POLYMERICS", Citations: []string{"NASA-STD-8739.1"}},
			},
		},
	}
	p := &plan.DatumPlan{
		PlanID:     "plan-1",
		Version:    1,
		State:      plan.StateApproved,
		ApprovedBy: "bob",
		ApprovedAt: "2026-08-06T00:00:00Z",
		SOERunID:   "run-1",
		Steps: []plan.Step{
			{StepID: "s1", Type: "CLEAN", SOEDecisionID: "dec1"},
		},
	}
	return p, run
}

func TestTrace_JoinsDecisionToStep(t *testing.T) {
	p, run := approvedPlanWithRun()
	entries := Trace(p, run)
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(entries))
	}
	if entries[0].RuleID != "RULE_1" || entries[0].PackID != "NASA_POLYMERICS" {
		t.Fatalf("unexpected trace entry: %+v", entries[0])
	}
}

func TestGenerate_RequiresApprovedPlan(t *testing.T) {
	p, run := approvedPlanWithRun()
	p.State = plan.StateDraft
	_, err := Generate(p, run, "html", "bob", "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodePlanStateTransitionInval {
		t.Fatalf("expected PLAN_STATE_TRANSITION_INVALID, got %v", err)
	}
}

func TestGenerate_RejectsUnsupportedFormat(t *testing.T) {
	p, run := approvedPlanWithRun()
	_, err := Generate(p, run, "pdf", "bob", "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodeUnsupportedFormat {
		t.Fatalf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
}

func TestGenerate_ProducesStableHash(t *testing.T) {
	p, run := approvedPlanWithRun()
	r1, err := Generate(p, run, "html", "bob", "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Generate(p, run, "html", "bob", "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if r1.ReportHash != r2.ReportHash {
		t.Fatalf("expected stable report_hash, got %s vs %s", r1.ReportHash, r2.ReportHash)
	}
	if !strings.Contains(r1.Body, "RULE_1") {
		t.Fatalf("expected body to contain traced rule id")
	}
}
