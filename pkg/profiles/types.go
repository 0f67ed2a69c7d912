// Package profiles models StandardsProfile, IndustryProfile, and
// ProfileBundle — the layered catalog of governance artifacts the SOE
// engine resolves before evaluating a single rule. A profile's lifecycle
// (draft/submitted/approved/rejected/deprecated) mirrors the plan state
// machine in pkg/plan so the same override-and-audit discipline governs
// both "what we decided" and "what we decided it against".
package profiles

// ProfileType is the closed set of layers a StandardsProfile can occupy.
// Layer is a semantic constant attached to the type, never a list index —
// SOE decision tagging depends on comparing layers, not positions.
type ProfileType string

const (
	TypeBase             ProfileType = "BASE"
	TypeDomain           ProfileType = "DOMAIN"
	TypeCustomerOverride ProfileType = "CUSTOMER_OVERRIDE"
)

// Layer returns the profile type's ordinal layer: BASE=0, DOMAIN=1,
// CUSTOMER_OVERRIDE=2. Unknown types sort last.
func (t ProfileType) Layer() int {
	switch t {
	case TypeBase:
		return 0
	case TypeDomain:
		return 1
	case TypeCustomerOverride:
		return 2
	default:
		return 3
	}
}

// OverrideMode controls how a profile's pack list combines with its
// parents' when resolved.
type OverrideMode string

const (
	OverrideStrict   OverrideMode = "STRICT"
	OverrideAdditive OverrideMode = "ADDITIVE"
	OverrideReplace  OverrideMode = "REPLACE"
)

// ConflictPolicy governs how contradictory decisions on the same object
// are resolved when two matched rules disagree.
type ConflictPolicy string

const (
	ConflictError      ConflictPolicy = "ERROR"
	ConflictParentWins ConflictPolicy = "PARENT_WINS"
	ConflictChildWins  ConflictPolicy = "CHILD_WINS"
)

// State is the lifecycle state shared by profiles and plans.
type State string

const (
	StateDraft      State = "draft"
	StateSubmitted  State = "submitted"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StateDeprecated State = "deprecated"
)

// StandardsProfile is a layered, versioned node in the profile DAG.
type StandardsProfile struct {
	ProfileID        string         `json:"profile_id" yaml:"profile_id"`
	ProfileType      ProfileType    `json:"profile_type" yaml:"profile_type"`
	ParentProfileIDs []string       `json:"parent_profile_ids" yaml:"parent_profile_ids"`
	DefaultPacks     []string       `json:"default_packs" yaml:"default_packs"`
	OverrideMode     OverrideMode   `json:"override_mode" yaml:"override_mode"`
	ConflictPolicy   ConflictPolicy `json:"conflict_policy" yaml:"conflict_policy"`
	State            State          `json:"state" yaml:"state"`
	Version          string         `json:"version" yaml:"version"` // semver X.Y.Z
	ParentVersion    string         `json:"parent_version,omitempty" yaml:"parent_version,omitempty"`

	SubmittedBy string `json:"submitted_by,omitempty" yaml:"submitted_by,omitempty"`
	ApprovedBy  string `json:"approved_by,omitempty" yaml:"approved_by,omitempty"`
	ApprovedAt  string `json:"approved_at,omitempty" yaml:"approved_at,omitempty"`
}

// IndustryProfile is read-only catalog data: the defaults applied to
// every run that declares the industry, whatever its profile stack.
type IndustryProfile struct {
	IndustryID        string   `json:"industry_id" yaml:"industry_id"`
	DefaultPacks      []string `json:"default_packs" yaml:"default_packs"`
	RiskPosture       string   `json:"risk_posture" yaml:"risk_posture"`
	TraceabilityDepth int      `json:"traceability_depth" yaml:"traceability_depth"`
	EvidenceRetention string   `json:"evidence_retention" yaml:"evidence_retention"`
}

// ProfileBundle names a set of profile ids. Bundles are never copies of
// their members and carry no lifecycle state of their own; resolving one
// at SOE time is equivalent to expanding its ProfileIDs in place.
type ProfileBundle struct {
	BundleID   string   `json:"bundle_id" yaml:"bundle_id"`
	ProfileIDs []string `json:"profile_ids" yaml:"profile_ids"`
	ProgramID  string   `json:"program_id,omitempty" yaml:"program_id,omitempty"`
	CustomerID string   `json:"customer_id,omitempty" yaml:"customer_id,omitempty"`
	ContractID string   `json:"contract_id,omitempty" yaml:"contract_id,omitempty"`
}
