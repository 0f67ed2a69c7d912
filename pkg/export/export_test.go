package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/soe"
)

func approvedProfiles() map[string]*profiles.StandardsProfile {
	return map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateApproved},
	}
}

func approvedPlan(tier int) (*plan.DatumPlan, *soe.Run) {
	run := &soe.Run{
		SOERunID:    "run-1",
		ActivePacks: []string{"NASA_POLYMERICS"},
		ProfileStack: []soe.ProfileStackEntry{
			{ProfileID: "domain.space", ProfileType: "DOMAIN", Layer: 1},
		},
		Decisions: []soe.Decision{
			{ID: "0123456789abcdef", ObjectID: "s1"},
		},
	}
	p := &plan.DatumPlan{
		PlanID:     "plan-1",
		Version:    1,
		State:      plan.StateApproved,
		Tier:       tier,
		ApprovedBy: "bob",
		ApprovedAt: "2026-08-06T00:00:00Z",
		SOERunID:   "run-1",
		Steps: []plan.Step{
			{StepID: "s1", Type: "CLEAN", Sequence: 1, Required: true, SOEDecisionID: "0123456789abcdef"},
		},
	}
	return p, run
}

func TestExport_RequiresApproval(t *testing.T) {
	p, run := approvedPlan(3)
	p.State = plan.StateDraft
	_, err := Export(p, run, approvedProfiles(), FormatCSV, "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodeExportRequiresApproval {
		t.Fatalf("expected EXPORT_REQUIRES_APPROVAL, got %v", err)
	}
}

func TestExport_TierInsufficientForExecutionFormats(t *testing.T) {
	p, run := approvedPlan(1)
	_, err := Export(p, run, approvedProfiles(), FormatJSON, "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodeTierInsufficient {
		t.Fatalf("expected TIER_INSUFFICIENT for json, got %v", err)
	}
	_, err = Export(p, run, approvedProfiles(), FormatPlacementCSV, "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodeTierInsufficient {
		t.Fatalf("expected TIER_INSUFFICIENT for placement_csv, got %v", err)
	}
	if _, err := Export(p, run, approvedProfiles(), FormatCSV, "2026-08-06T00:00:00Z"); err != nil {
		t.Fatalf("csv export should not require execution tier: %v", err)
	}
}

func TestExport_CSVContainsSteps(t *testing.T) {
	p, run := approvedPlan(3)
	b, err := Export(p, run, approvedProfiles(), FormatCSV, "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "s1") || !strings.Contains(string(b), "CLEAN") {
		t.Fatalf("expected csv to contain step row, got %s", b)
	}
}

func TestExport_JSONContentHashStable(t *testing.T) {
	p, run := approvedPlan(3)
	b1, err := Export(p, run, approvedProfiles(), FormatJSON, "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	b2, err := Export(p, run, approvedProfiles(), FormatJSON, "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	var e1, e2 JSONExport
	if err := json.Unmarshal(b1, &e1); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b2, &e2); err != nil {
		t.Fatal(err)
	}
	if e1.ContentHash == "" || e1.ContentHash != e2.ContentHash {
		t.Fatalf("expected stable content_hash, got %q vs %q", e1.ContentHash, e2.ContentHash)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	p, run := approvedPlan(3)
	_, err := Export(p, run, approvedProfiles(), Format("xml"), "2026-08-06T00:00:00Z")
	if domainerr.CodeOf(err) != domainerr.CodeUnsupportedFormat {
		t.Fatalf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
}

func TestAuditIntegrity_PassesForConsistentApprovedPlan(t *testing.T) {
	p, run := approvedPlan(3)
	byID := map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateApproved},
	}
	report := AuditIntegrity(p, run, byID)
	if !report.Passed {
		t.Fatalf("expected integrity report to pass, got %+v", report)
	}
}

func TestAuditIntegrity_FailsWhenProfileNoLongerUsable(t *testing.T) {
	p, run := approvedPlan(3)
	byID := map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateRejected},
	}
	report := AuditIntegrity(p, run, byID)
	if report.Passed {
		t.Fatalf("expected integrity report to fail for a rejected profile in the stack")
	}
}

// TestAuditIntegrity_FlagsDeprecatedProfileWithoutFailing exercises
// spec.md §8 scenario 6: an approved plan whose SOE run references a
// deprecated profile still passes audit-integrity, but the report
// names the profile with a PROFILE_DEPRECATED_IN_ACTIVE_ARTIFACT
// finding.
func TestAuditIntegrity_FlagsDeprecatedProfileWithoutFailing(t *testing.T) {
	p, run := approvedPlan(3)
	byID := map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateDeprecated},
	}
	report := AuditIntegrity(p, run, byID)
	if !report.Passed {
		t.Fatalf("expected integrity report to still pass for a deprecated-but-usable profile, got %+v", report)
	}
	if len(report.Findings) != 1 || report.Findings[0].Code != CodeProfileDeprecatedInActiveArtifact || report.Findings[0].ProfileID != "domain.space" {
		t.Fatalf("expected a PROFILE_DEPRECATED_IN_ACTIVE_ARTIFACT finding naming domain.space, got %+v", report.Findings)
	}
}

// TestExport_CarriesDeprecatedProfileFindingInProvenance exercises the
// other half of the same scenario: export still succeeds, and the
// deprecated profile's finding rides along in provenance.
func TestExport_CarriesDeprecatedProfileFindingInProvenance(t *testing.T) {
	p, run := approvedPlan(3)
	byID := map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateDeprecated},
	}
	b, err := Export(p, run, byID, FormatJSON, "2026-08-06T00:00:00Z")
	if err != nil {
		t.Fatalf("export with a deprecated profile in the stack must still succeed: %v", err)
	}
	var out JSONExport
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Provenance.Findings) != 1 || out.Provenance.Findings[0].Code != CodeProfileDeprecatedInActiveArtifact {
		t.Fatalf("expected provenance to carry the deprecated-profile finding, got %+v", out.Provenance.Findings)
	}
}

func TestAuditIntegrity_FailsWhenStepReferencesUnknownDecision(t *testing.T) {
	p, run := approvedPlan(3)
	p.Steps[0].SOEDecisionID = "deadbeefdeadbeef"
	byID := map[string]*profiles.StandardsProfile{
		"domain.space": {ProfileID: "domain.space", State: profiles.StateApproved},
	}
	report := AuditIntegrity(p, run, byID)
	if report.Passed {
		t.Fatalf("expected integrity report to fail for a dangling step decision reference")
	}
}
