// Package soe implements the Standards Overlay Engine: a pure function
// resolving a layered profile stack into an ordered pack list, evaluating
// every rule deterministically, and emitting an auditable SOERun. Nothing
// in this package performs I/O, reads the clock, or retries — every
// dependency (profile/pack/industry lookup, CEL formula evaluation) is
// injected so the engine itself stays a function of its inputs.
package soe

import "github.com/tracepack/mfgplan/pkg/standards"

// ProfileStackEntry is one layer of the resolved profile stack attached
// to a run, in resolution order.
type ProfileStackEntry struct {
	ProfileID        string   `json:"profile_id"`
	ProfileType      string   `json:"profile_type"`
	Layer            int      `json:"layer"`
	ParentProfileIDs []string `json:"parent_profile_ids,omitempty"`
}

// ProfileSource identifies which profile layer a decision is attributed
// to: the highest-layer profile whose pack list contains the decision's
// pack_id, ties broken by profile_id ascending.
type ProfileSource struct {
	ProfileID   string `json:"profile_id"`
	ProfileType string `json:"profile_type"`
	Layer       int    `json:"layer"`
}

// Why is the rendered, locale-independent human explanation for a
// decision.
type Why struct {
	RuleID    string   `json:"rule_id"`
	PackID    string   `json:"pack_id"`
	Citations []string `json:"citations,omitempty"`
	Summary   string   `json:"summary"`
	Text      string   `json:"text"`
}

// Decision is one content-addressed effect of a matched rule.
type Decision struct {
	ID            string                `json:"id"`
	Action        standards.Action      `json:"action"`
	ObjectType    standards.ObjectType  `json:"object_type"`
	ObjectID      string                `json:"object_id"`
	Enforcement   standards.Enforcement `json:"enforcement,omitempty"`
	Why           Why                   `json:"why"`
	ProfileSource *ProfileSource        `json:"profile_source,omitempty"`
	Spec          standards.ActionSpec  `json:"spec"`
}

// GateStatus is the closed set of states a Gate may be in.
type GateStatus string

const (
	GateOpen    GateStatus = "open"
	GateBlocked GateStatus = "blocked"
	GateWarning GateStatus = "warning"
)

// Gate is a named release checkpoint, blocked by zero or more decisions.
type Gate struct {
	GateID    string     `json:"gate_id"`
	Status    GateStatus `json:"status"`
	BlockedBy []string   `json:"blocked_by,omitempty"`
}

// RequiredEvidence is one evidence-retention obligation collected from a
// REQUIRE(evidence) decision.
type RequiredEvidence struct {
	DecisionID    string `json:"decision_id"`
	ObjectID      string `json:"object_id"`
	EvidenceClass string `json:"evidence_class"`
	Retention     string `json:"retention,omitempty"`
}

// CostModifier is one ADD_COST_MODIFIER decision's resolved amount.
type CostModifier struct {
	DecisionID string  `json:"decision_id"`
	ObjectID   string  `json:"object_id"`
	Amount     float64 `json:"amount"`
	Formula    string  `json:"formula,omitempty"`
}

// Run is the complete, auditable output of one SOE evaluation. Pure
// function of its inputs: regenerating with byte-identical inputs and
// catalog state yields a byte-identical canonical JSON encoding.
type Run struct {
	SOERunID         string              `json:"soe_run_id"`
	IndustryProfile  string              `json:"industry_profile"`
	HardwareClass    string              `json:"hardware_class,omitempty"`
	ActivePacks      []string            `json:"active_packs"`
	ProfileStack     []ProfileStackEntry `json:"profile_stack"`
	Decisions        []Decision          `json:"decisions"`
	Gates            []Gate              `json:"gates"`
	RequiredEvidence []RequiredEvidence  `json:"required_evidence"`
	CostModifiers    []CostModifier      `json:"cost_modifiers"`
	AuditReplay      bool                `json:"audit_replay,omitempty"`

	// Signature is additive transport-integrity metadata. It never
	// participates in any content-addressed id computed over this run.
	Signature string `json:"signature,omitempty"`
}
