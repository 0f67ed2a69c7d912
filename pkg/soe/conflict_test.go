package soe

import (
	"testing"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/standards"
)

// conflictingDecisions models spec §8 scenario 3's shape: a BASE-layer
// pack requires something a CUSTOMER_OVERRIDE-layer pack prohibits on
// the same object.
func conflictingDecisions() []Decision {
	return []Decision{
		{
			ID:         "dec_require",
			Action:     standards.ActionRequire,
			ObjectType: standards.ObjectStep,
			ObjectID:   "conformal_coat",
			ProfileSource: &ProfileSource{ProfileID: "base.ipc", ProfileType: string(profiles.TypeBase), Layer: profiles.TypeBase.Layer()},
		},
		{
			ID:         "dec_prohibit",
			Action:     standards.ActionProhibit,
			ObjectType: standards.ObjectStep,
			ObjectID:   "conformal_coat",
			ProfileSource: &ProfileSource{ProfileID: "customer.x", ProfileType: string(profiles.TypeCustomerOverride), Layer: profiles.TypeCustomerOverride.Layer()},
		},
	}
}

func TestResolveConflicts_ErrorPolicyAborts(t *testing.T) {
	closure := map[string]*profiles.StandardsProfile{
		"base.ipc":   {ProfileID: "base.ipc", ProfileType: profiles.TypeBase},
		"customer.x": {ProfileID: "customer.x", ProfileType: profiles.TypeCustomerOverride, ConflictPolicy: profiles.ConflictError},
	}

	_, err := resolveConflicts(conflictingDecisions(), closure)
	if domainerr.CodeOf(err) != domainerr.CodeRuleConflict {
		t.Fatalf("expected RULE_CONFLICT, got %v", err)
	}
}

func TestResolveConflicts_ChildWinsDropsParentDecision(t *testing.T) {
	closure := map[string]*profiles.StandardsProfile{
		"base.ipc":   {ProfileID: "base.ipc", ProfileType: profiles.TypeBase},
		"customer.x": {ProfileID: "customer.x", ProfileType: profiles.TypeCustomerOverride, ConflictPolicy: profiles.ConflictChildWins},
	}

	out, err := resolveConflicts(conflictingDecisions(), closure)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "dec_prohibit" {
		t.Fatalf("expected only the child (customer.x) decision to survive, got %v", out)
	}
}

func TestResolveConflicts_ParentWinsDropsChildDecision(t *testing.T) {
	closure := map[string]*profiles.StandardsProfile{
		"base.ipc":   {ProfileID: "base.ipc", ProfileType: profiles.TypeBase},
		"customer.x": {ProfileID: "customer.x", ProfileType: profiles.TypeCustomerOverride, ConflictPolicy: profiles.ConflictParentWins},
	}

	out, err := resolveConflicts(conflictingDecisions(), closure)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "dec_require" {
		t.Fatalf("expected only the parent (base.ipc) decision to survive, got %v", out)
	}
}

func TestResolveConflicts_NonContradictoryDecisionsPassThrough(t *testing.T) {
	decisions := []Decision{
		{ID: "dec_a", Action: standards.ActionRequire, ObjectType: standards.ObjectStep, ObjectID: "s1"},
		{ID: "dec_b", Action: standards.ActionRequire, ObjectType: standards.ObjectStep, ObjectID: "s2"},
	}
	out, err := resolveConflicts(decisions, map[string]*profiles.StandardsProfile{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both non-conflicting decisions to survive, got %v", out)
	}
}
