package profiles

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// Submit moves a draft profile to submitted for review.
func Submit(p *StandardsProfile, submittedBy string) error {
	if p.State != StateDraft {
		return invalidTransition(p.State, "submit")
	}
	p.State = StateSubmitted
	p.SubmittedBy = submittedBy
	return nil
}

// Approve moves a submitted profile to approved. Once approved, a profile
// is immutable except for the forward transition to deprecated — this is
// a red-team guard, not a convenience: the state cannot move back from
// approved under any other event.
func Approve(p *StandardsProfile, approvedBy, approvedAt string) error {
	if p.State != StateSubmitted {
		return invalidTransition(p.State, "approve")
	}
	p.State = StateApproved
	p.ApprovedBy = approvedBy
	p.ApprovedAt = approvedAt
	return nil
}

// Reject returns a submitted profile to draft for rework.
func Reject(p *StandardsProfile) error {
	if p.State != StateSubmitted {
		return invalidTransition(p.State, "reject")
	}
	p.State = StateDraft
	return nil
}

// Deprecate is the only transition an approved profile may ever undergo.
func Deprecate(p *StandardsProfile) error {
	if p.State != StateApproved {
		return invalidTransition(p.State, "deprecate")
	}
	p.State = StateDeprecated
	return nil
}

// RequireUsable enforces the SOE run-time guard: only approved profiles
// may participate in a run, unless allowDeprecated is set for explicit
// audit-replay mode.
func RequireUsable(p *StandardsProfile, allowDeprecated bool) error {
	if p.State == StateApproved {
		return nil
	}
	if p.State == StateDeprecated && allowDeprecated {
		return nil
	}
	return domainerr.WithDetail(domainerr.CodeProfileUnusable,
		fmt.Sprintf("profile %s is %s, not approved", p.ProfileID, p.State),
		map[string]string{"profile_id": p.ProfileID, "state": string(p.State)})
}

func invalidTransition(from State, event string) error {
	return domainerr.WithDetail(domainerr.CodePlanStateTransitionInval,
		fmt.Sprintf("cannot %s a profile in state %s", event, from),
		map[string]string{"from_state": string(from), "event": event})
}

// NewVersion clones an approved profile into a fresh draft with a bumped
// patch version and parent_version set, per the "approved ⇒ immutable,
// corrections create a new version" discipline spec.md applies uniformly
// to plans and profiles.
func NewVersion(approved *StandardsProfile) (*StandardsProfile, error) {
	if approved.State != StateApproved && approved.State != StateDeprecated {
		return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit,
			"new versions may only be cut from an approved or deprecated profile",
			map[string]string{"profile_id": approved.ProfileID, "state": string(approved.State)})
	}

	v, err := semver.NewVersion(approved.Version)
	if err != nil {
		return nil, fmt.Errorf("profiles: parse version %q: %w", approved.Version, err)
	}
	next := v.IncPatch()

	clone := *approved
	clone.DefaultPacks = append([]string(nil), approved.DefaultPacks...)
	clone.ParentProfileIDs = append([]string(nil), approved.ParentProfileIDs...)
	clone.Version = next.String()
	clone.ParentVersion = approved.Version
	clone.State = StateDraft
	clone.SubmittedBy = ""
	clone.ApprovedBy = ""
	clone.ApprovedAt = ""
	return &clone, nil
}
