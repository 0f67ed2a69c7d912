// Package plan implements the Plan Generator, Editor, Optimizer, and
// Approval state machine: the pure transformations that turn an SOE run
// into a versioned, auditable DatumPlan, and the controlled-editing
// discipline that governs every later change to it.
package plan

// State is the plan lifecycle state. Unlike profiles, plans have no
// deprecated state: a rejected plan returns to draft under the same
// plan id and version, and corrections after approval always start a
// fresh version rather than a new lifecycle branch.
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
)

// Quote is the external input the plan generator seeds a baseline
// sequence from. The core treats its contents as opaque beyond the
// fields it needs directly; BOM/geometry extraction is an external
// collaborator per spec.md §1.
type Quote struct {
	QuoteID string `json:"quote_id"`
	Tier    int    `json:"tier"`
}

// Override records a justified deviation from an otherwise-forbidden
// edit: removing/reordering an SOE-sourced item, reordering a locked
// sequence, or removing required evidence.
type Override struct {
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
	UserID     string `json:"user_id"`
	Timestamp  string `json:"timestamp"`
}

// EditMetadata is appended, never rewritten, on every edit.
type EditMetadata struct {
	EditedBy  string     `json:"edited_by"`
	EditedAt  string     `json:"edited_at"`
	EditReason string    `json:"edit_reason"`
	Overrides []Override `json:"overrides,omitempty"`
}

// Step is one manufacturing operation in a plan. A step carrying
// SOEDecisionID is SOE-derived and SOE-locked: removing or reordering it
// requires an override.
type Step struct {
	StepID         string         `json:"step_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title,omitempty"`
	Sequence       int            `json:"sequence"`
	Required       bool           `json:"required"`
	LockedSequence bool           `json:"locked_sequence"`
	LockGroup      string         `json:"lock_group,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Acceptance     string         `json:"acceptance,omitempty"`
	SourceRules    []string       `json:"source_rules"`
	SOEDecisionID  string         `json:"soe_decision_id,omitempty"`
	SOEWhy         string         `json:"soe_why,omitempty"`
}

// Test is a declared verification activity, analogous in SOE-locking
// terms to a Step.
type Test struct {
	Name          string   `json:"name"`
	Required      bool     `json:"required"`
	SourceRules   []string `json:"source_rules"`
	SOEDecisionID string   `json:"soe_decision_id,omitempty"`
}

// EvidenceIntent declares an evidence class the plan commits to
// retaining, and for how long.
type EvidenceIntent struct {
	EvidenceClass string   `json:"evidence_class"`
	Format        string   `json:"format,omitempty"`
	Retention     string   `json:"retention,omitempty"`
	SourceRules   []string `json:"source_rules"`
	SOEDecisionID string   `json:"soe_decision_id,omitempty"`
}

// DatumPlan is the versioned, auditable manufacturing plan artifact.
// Each version is written once and never mutated; only State and Locked
// transition in place as the approval state machine dictates.
type DatumPlan struct {
	PlanID         string           `json:"plan_id"`
	QuoteID        string           `json:"quote_id"`
	Version        int              `json:"version"`
	ParentVersion  int              `json:"parent_version,omitempty"`
	State          State            `json:"state"`
	Locked         bool             `json:"locked"`
	Tier           int              `json:"tier"`
	Steps          []Step           `json:"steps"`
	Tests          []Test           `json:"tests"`
	EvidenceIntent []EvidenceIntent `json:"evidence_intent"`
	SOERunID       string           `json:"soe_run_id,omitempty"`
	SOEDecisionIDs []string         `json:"soe_decision_ids,omitempty"`
	EditMetadata   []EditMetadata   `json:"edit_metadata,omitempty"`

	ApprovedBy string `json:"approved_by,omitempty"`
	ApprovedAt string `json:"approved_at,omitempty"`
}
