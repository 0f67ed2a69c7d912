package soe

import (
	"testing"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/ruleexpr"
	"github.com/tracepack/mfgplan/pkg/standards"
)

type mapProfiles map[string]*profiles.StandardsProfile

func (m mapProfiles) Get(id string) (*profiles.StandardsProfile, bool) { p, ok := m[id]; return p, ok }

type mapBundles map[string]*profiles.ProfileBundle

func (m mapBundles) Get(id string) (*profiles.ProfileBundle, bool) { b, ok := m[id]; return b, ok }

type mapIndustries map[string]*profiles.IndustryProfile

func (m mapIndustries) Get(id string) (*profiles.IndustryProfile, bool) { i, ok := m[id]; return i, ok }

func spacePolymericsCatalog() *standards.Catalog {
	cat := standards.NewCatalog()
	cat.Register(&standards.Pack{
		PackID:   "NASA_POLYMERICS",
		Industry: "space",
		Rules: []standards.Rule{
			{
				RuleID:    "RULE_POLYMERIC_BONDING_SEQUENCE",
				Summary:   "Flight-class polymeric bonding requires a locked clean/bake/cure sequence",
				Citations: []string{"NASA-STD-8739.1"},
				Trigger: ruleexpr.Expr{All: []ruleexpr.Expr{
					{Field: "industry_profile", Op: ruleexpr.OpEquals, Value: "space"},
					{Field: "hardware_class", Op: ruleexpr.OpEquals, Value: "flight"},
					{Field: "materials", Op: ruleexpr.OpContains, Value: "EPOXY_3M_SCOTCHWELD_2216"},
				}},
				Severity: standards.SeverityCritical,
				Actions:  lockedSequenceActions(),
			},
		},
	})
	return cat
}

func lockedSequenceActions() []standards.ActionSpec {
	steps := []string{"CLEAN", "BAKE", "POLYMER", "CURE", "INSPECT"}
	out := make([]standards.ActionSpec, 0, len(steps))
	for i, step := range steps {
		out = append(out, standards.ActionSpec{
			Action:         standards.ActionInsertStep,
			ObjectType:     standards.ObjectStep,
			ObjectID:       "polymeric_" + step,
			StepType:       step,
			Sequence:       i + 1,
			LockedSequence: true,
			LockGroup:      "NASA_POLYMERICS",
		})
	}
	return out
}

func baseEngine(cat *standards.Catalog) *Engine {
	industries := mapIndustries{
		"space": {IndustryID: "space", DefaultPacks: []string{"NASA_POLYMERICS"}},
	}
	return &Engine{
		Profiles:   mapProfiles{},
		Bundles:    mapBundles{},
		Industries: industries,
		Packs:      cat,
	}
}

func TestEvaluate_SpaceFlightPolymerics(t *testing.T) {
	eng := baseEngine(spacePolymericsCatalog())

	in := Input{
		RunID:           "run-1",
		IndustryProfile: "space",
		HardwareClass:   "flight",
		Context: map[string]any{
			"materials": []any{"EPOXY_3M_SCOTCHWELD_2216"},
			"processes": []any{"SMT", "REFLOW", "CONFORMAL_COAT"},
		},
	}

	run, err := eng.Evaluate(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Decisions) != 5 {
		t.Fatalf("expected 5 locked-sequence decisions, got %d", len(run.Decisions))
	}
	wantOrder := []string{"polymeric_CLEAN", "polymeric_BAKE", "polymeric_POLYMER", "polymeric_CURE", "polymeric_INSPECT"}
	for i, d := range run.Decisions {
		if d.ObjectID != wantOrder[i] {
			t.Fatalf("decision %d: expected %s, got %s", i, wantOrder[i], d.ObjectID)
		}
		if d.ID == "" {
			t.Fatalf("decision %d has empty id", i)
		}
	}
	if len(run.ActivePacks) != 1 || run.ActivePacks[0] != "NASA_POLYMERICS" {
		t.Fatalf("expected active_packs=[NASA_POLYMERICS], got %v", run.ActivePacks)
	}
}

func TestEvaluate_Determinism(t *testing.T) {
	eng := baseEngine(spacePolymericsCatalog())
	in := Input{
		RunID:           "run-1",
		IndustryProfile: "space",
		HardwareClass:   "flight",
		Context: map[string]any{
			"materials": []any{"EPOXY_3M_SCOTCHWELD_2216"},
		},
	}

	r1, err := eng.Evaluate(in)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := eng.Evaluate(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(r1.Decisions) != len(r2.Decisions) {
		t.Fatalf("non-deterministic decision count: %d vs %d", len(r1.Decisions), len(r2.Decisions))
	}
	for i := range r1.Decisions {
		if r1.Decisions[i].ID != r2.Decisions[i].ID {
			t.Fatalf("non-deterministic decision id at %d", i)
		}
	}
}

func TestEvaluate_RejectsNonApprovedProfile(t *testing.T) {
	eng := baseEngine(spacePolymericsCatalog())
	eng.Profiles = mapProfiles{
		"domain.space": {ProfileID: "domain.space", ProfileType: profiles.TypeDomain, State: profiles.StateDraft},
	}

	_, err := eng.Evaluate(Input{
		RunID:           "run-1",
		IndustryProfile: "space",
		ActiveProfiles:  []string{"domain.space"},
	})
	if domainerr.CodeOf(err) != domainerr.CodeProfileUnusable {
		t.Fatalf("expected PROFILE_UNUSABLE, got %v", err)
	}
}

func TestEvaluate_UnknownPackFails(t *testing.T) {
	eng := baseEngine(standards.NewCatalog())
	_, err := eng.Evaluate(Input{RunID: "run-1", IndustryProfile: "space"})
	if domainerr.CodeOf(err) != domainerr.CodePackNotFound {
		t.Fatalf("expected PACK_NOT_FOUND, got %v", err)
	}
}

// medicalIQOQPQCatalog models the scenario from spec §8 example 2: a
// PROCESS_VALIDATION_IQOQPQ rule that both requires a gate on the DHR
// evidence object and blocks release until it is satisfied.
func medicalIQOQPQCatalog() *standards.Catalog {
	cat := standards.NewCatalog()
	cat.Register(&standards.Pack{
		PackID:   "MEDICAL_PROCESS_VALIDATION",
		Industry: "medical",
		Rules: []standards.Rule{
			{
				RuleID:  "PROCESS_VALIDATION_IQOQPQ",
				Summary: "Process validation requires IQ/OQ/PQ evidence before release",
				Trigger: ruleexpr.Expr{All: []ruleexpr.Expr{
					{Field: "industry_profile", Op: ruleexpr.OpEquals, Value: "medical"},
				}},
				Actions: []standards.ActionSpec{
					{
						Action: standards.ActionRequire, ObjectType: standards.ObjectEvidence,
						ObjectID: "DHR", EvidenceClass: "DHR", Enforcement: standards.EnforcementBlockRelease,
					},
					{
						Action: standards.ActionAddGate, ObjectType: standards.ObjectEvidence,
						ObjectID: "DHR", GateID: "release_gate",
					},
				},
			},
			{
				RuleID:  "OTHER_WARN_ONLY",
				Summary: "A second gate on a different object must stay unblocked by the first gate's BLOCK_RELEASE decision",
				Trigger: ruleexpr.Expr{All: []ruleexpr.Expr{
					{Field: "industry_profile", Op: ruleexpr.OpEquals, Value: "medical"},
				}},
				Actions: []standards.ActionSpec{
					{
						Action: standards.ActionRequire, ObjectType: standards.ObjectTest,
						ObjectID: "OQ", Enforcement: standards.EnforcementWarn,
					},
					{
						Action: standards.ActionAddGate, ObjectType: standards.ObjectTest,
						ObjectID: "OQ", GateID: "oq_gate",
					},
				},
			},
		},
	})
	return cat
}

func TestEvaluate_GateBlockedOnlyByDecisionsOnItsOwnObject(t *testing.T) {
	industries := mapIndustries{
		"medical": {IndustryID: "medical", DefaultPacks: []string{"MEDICAL_PROCESS_VALIDATION"}},
	}
	eng := &Engine{
		Profiles:   mapProfiles{},
		Bundles:    mapBundles{},
		Industries: industries,
		Packs:      medicalIQOQPQCatalog(),
	}

	run, err := eng.Evaluate(Input{RunID: "run-1", IndustryProfile: "medical"})
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Gates) != 2 {
		t.Fatalf("expected two gates, got %d", len(run.Gates))
	}

	var release, oq *Gate
	for i := range run.Gates {
		switch run.Gates[i].GateID {
		case "release_gate":
			release = &run.Gates[i]
		case "oq_gate":
			oq = &run.Gates[i]
		}
	}
	if release == nil || oq == nil {
		t.Fatalf("expected both release_gate and oq_gate, got %v", run.Gates)
	}

	if release.Status != GateBlocked {
		t.Fatalf("expected release_gate blocked by the DHR REQUIRE decision, got %s", release.Status)
	}
	if len(release.BlockedBy) != 1 {
		t.Fatalf("expected release_gate blocked by exactly the DHR decision, got %d: %v", len(release.BlockedBy), release.BlockedBy)
	}

	if oq.Status != GateOpen {
		t.Fatalf("expected oq_gate to stay open: its only decision is WARN-enforced, and it must not inherit release_gate's BLOCK_RELEASE decision, got %s", oq.Status)
	}
	if len(oq.BlockedBy) != 0 {
		t.Fatalf("expected oq_gate blocked_by empty, got %v", oq.BlockedBy)
	}
}
