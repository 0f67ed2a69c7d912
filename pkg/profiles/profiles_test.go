package profiles

import (
	"testing"

	"github.com/tracepack/mfgplan/pkg/domainerr"
)

func TestValidateGraph_TypeConstraints(t *testing.T) {
	base := &StandardsProfile{ProfileID: "base.ipc", ProfileType: TypeBase}
	domain := &StandardsProfile{ProfileID: "domain.space", ProfileType: TypeDomain, ParentProfileIDs: []string{"base.ipc"}}
	override := &StandardsProfile{ProfileID: "cust.acme", ProfileType: TypeCustomerOverride, ParentProfileIDs: []string{"domain.space"}}

	all := map[string]*StandardsProfile{
		base.ProfileID:     base,
		domain.ProfileID:   domain,
		override.ProfileID: override,
	}
	if err := ValidateGraph(all); err != nil {
		t.Fatalf("expected valid graph, got %v", err)
	}
}

func TestValidateGraph_RejectsDomainWithNonBaseParent(t *testing.T) {
	domainA := &StandardsProfile{ProfileID: "domain.a", ProfileType: TypeDomain}
	domainB := &StandardsProfile{ProfileID: "domain.b", ProfileType: TypeDomain, ParentProfileIDs: []string{"domain.a"}}
	all := map[string]*StandardsProfile{domainA.ProfileID: domainA, domainB.ProfileID: domainB}

	err := ValidateGraph(all)
	if domainerr.CodeOf(err) != domainerr.CodeProfileGraphInvalid {
		t.Fatalf("expected PROFILE_GRAPH_INVALID, got %v", err)
	}
}

func TestValidateGraph_DetectsCycle(t *testing.T) {
	a := &StandardsProfile{ProfileID: "a", ProfileType: TypeBase, ParentProfileIDs: []string{"b"}}
	b := &StandardsProfile{ProfileID: "b", ProfileType: TypeBase, ParentProfileIDs: []string{"a"}}
	all := map[string]*StandardsProfile{"a": a, "b": b}

	err := ValidateGraph(all)
	if domainerr.CodeOf(err) != domainerr.CodeProfileGraphInvalid {
		t.Fatalf("expected PROFILE_GRAPH_INVALID for cycle, got %v", err)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	p := &StandardsProfile{ProfileID: "domain.space", State: StateDraft, Version: "1.0.0"}

	if err := Submit(p, "alice"); err != nil {
		t.Fatal(err)
	}
	if p.State != StateSubmitted {
		t.Fatalf("expected submitted, got %s", p.State)
	}
	if err := Approve(p, "bob", "2026-08-06T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if p.State != StateApproved {
		t.Fatalf("expected approved, got %s", p.State)
	}
	if err := RequireUsable(p, false); err != nil {
		t.Fatalf("approved profile should be usable: %v", err)
	}
}

func TestLifecycle_ApprovedIsImmutableExceptDeprecate(t *testing.T) {
	p := &StandardsProfile{ProfileID: "domain.space", State: StateApproved, Version: "1.0.0"}

	if err := Submit(p, "alice"); domainerr.CodeOf(err) != domainerr.CodePlanStateTransitionInval {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if err := Deprecate(p); err != nil {
		t.Fatalf("deprecate should succeed from approved: %v", err)
	}
	if p.State != StateDeprecated {
		t.Fatalf("expected deprecated, got %s", p.State)
	}
}

func TestRequireUsable_DeprecatedOnlyInAuditReplay(t *testing.T) {
	p := &StandardsProfile{ProfileID: "domain.space", State: StateDeprecated}

	if err := RequireUsable(p, false); domainerr.CodeOf(err) != domainerr.CodeProfileUnusable {
		t.Fatalf("expected PROFILE_UNUSABLE without audit-replay, got %v", err)
	}
	if err := RequireUsable(p, true); err != nil {
		t.Fatalf("deprecated profile should be usable in audit-replay mode: %v", err)
	}
}

func TestNewVersion_BumpsPatchAndTracksParent(t *testing.T) {
	approved := &StandardsProfile{
		ProfileID: "domain.space",
		State:     StateApproved,
		Version:   "1.2.3",
		DefaultPacks: []string{"PACK_A"},
	}
	next, err := NewVersion(approved)
	if err != nil {
		t.Fatal(err)
	}
	if next.Version != "1.2.4" {
		t.Fatalf("expected patch bump to 1.2.4, got %s", next.Version)
	}
	if next.ParentVersion != "1.2.3" {
		t.Fatalf("expected parent_version 1.2.3, got %s", next.ParentVersion)
	}
	if next.State != StateDraft {
		t.Fatalf("expected new version to start draft, got %s", next.State)
	}
}

func TestResolveStack_DedupAndOrder(t *testing.T) {
	bundle := &ProfileBundle{BundleID: "b1", ProfileIDs: []string{"domain.space", "domain.space"}}
	stack := ResolveStack(bundle, []string{"cust.acme", "domain.space"})

	want := []string{"domain.space", "cust.acme"}
	if len(stack) != len(want) {
		t.Fatalf("expected %v, got %v", want, stack)
	}
	for i, id := range want {
		if stack[i] != id {
			t.Fatalf("expected %v, got %v", want, stack)
		}
	}
}
