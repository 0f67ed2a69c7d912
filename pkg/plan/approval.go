package plan

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// Submit moves a draft plan to submitted.
func Submit(p *DatumPlan, reason string) error {
	if p.State != StateDraft {
		return invalidTransition(p.State, "submit")
	}
	p.State = StateSubmitted
	p.EditMetadata = append(p.EditMetadata, EditMetadata{EditReason: reason})
	return nil
}

// Approve moves a submitted plan to approved, locking it. It takes no
// role: enforcement that the caller is OPS/ADMIN belongs to the HTTP
// edge, not this pure state transition.
func Approve(p *DatumPlan, reason, approvedBy, approvedAt string) error {
	if p.State != StateSubmitted {
		return invalidTransition(p.State, "approve")
	}
	p.State = StateApproved
	p.Locked = true
	p.ApprovedBy = approvedBy
	p.ApprovedAt = approvedAt
	p.EditMetadata = append(p.EditMetadata, EditMetadata{EditReason: reason, EditedBy: approvedBy, EditedAt: approvedAt})
	return nil
}

// Reject returns a submitted plan to draft, same plan id and version; the
// rejection itself is recorded in edit metadata, never erasing history.
func Reject(p *DatumPlan, reason string) error {
	if p.State != StateSubmitted {
		return invalidTransition(p.State, "reject")
	}
	p.State = StateDraft
	p.EditMetadata = append(p.EditMetadata, EditMetadata{EditReason: reason})
	return nil
}

// RequireEditable enforces the approved-is-immutable guard: any attempt
// to mutate an approved plan's current version must fail fast with
// PLAN_APPROVED_IMMUTABLE, directing the caller to open a new version
// from the approved ancestor instead.
func RequireEditable(p *DatumPlan) error {
	if p.State == StateApproved {
		return domainerr.New(domainerr.CodePlanApprovedImmutable,
			fmt.Sprintf("plan %s v%d is approved and immutable", p.PlanID, p.Version))
	}
	if p.State != StateDraft {
		return invalidTransition(p.State, "edit")
	}
	return nil
}

func invalidTransition(from State, event string) error {
	return domainerr.WithDetail(domainerr.CodePlanStateTransitionInval,
		fmt.Sprintf("cannot %s a plan in state %s", event, from),
		map[string]string{"from_state": string(from), "event": event})
}
