// Package standards holds StandardsPack and Rule, the read-only catalog
// data the SOE engine evaluates (spec §3, §4.2). Packs are loaded from an
// external catalog and are immutable once published; this package only
// models the data and its loader, never mutates a pack in place.
package standards

import "github.com/tracepack/mfgplan/pkg/ruleexpr"

// Action is the closed enum of effects a matched Rule can declare.
// Tagged variants replace dynamic dispatch so Decision hashing stays
// stable under refactoring (spec §9).
type Action string

const (
	ActionRequire         Action = "REQUIRE"
	ActionOptional        Action = "OPTIONAL"
	ActionProhibit        Action = "PROHIBIT"
	ActionInsertStep      Action = "INSERT_STEP"
	ActionEscalate        Action = "ESCALATE"
	ActionSetRetention    Action = "SET_RETENTION"
	ActionAddCostModifier Action = "ADD_COST_MODIFIER"
	ActionAddGate         Action = "ADD_GATE"
)

// Enforcement describes how strictly a decision's action is applied.
type Enforcement string

const (
	EnforcementBlockRelease Enforcement = "BLOCK_RELEASE"
	EnforcementWarn         Enforcement = "WARN"
	EnforcementNone         Enforcement = ""
)

// Severity classifies a rule's importance for reporting purposes.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ObjectType names the kind of plan artifact an action's payload targets.
type ObjectType string

const (
	ObjectStep      ObjectType = "step"
	ObjectTest      ObjectType = "test"
	ObjectEvidence  ObjectType = "evidence"
	ObjectGate      ObjectType = "gate"
	ObjectPlan      ObjectType = "plan"
	ObjectRetention ObjectType = "retention"
)

// ActionSpec is the per-action payload declared on a Rule. Exactly the
// fields relevant to Action are populated; this keeps Decision.id stable
// (spec §9: "per-action payload is a tagged record").
type ActionSpec struct {
	Action     Action      `json:"action"`
	ObjectType ObjectType  `json:"object_type"`
	ObjectID   string      `json:"object_id"`
	Enforcement Enforcement `json:"enforcement,omitempty"`

	// INSERT_STEP / REQUIRE(step) payload.
	StepType       string   `json:"step_type,omitempty"`
	StepTitle      string   `json:"step_title,omitempty"`
	Sequence       int      `json:"sequence,omitempty"`
	LockedSequence bool     `json:"locked_sequence,omitempty"`
	LockGroup      string   `json:"lock_group,omitempty"` // contiguous-block key, e.g. "NASA_POLYMERICS"
	Parameters     map[string]any `json:"parameters,omitempty"`
	Acceptance     string   `json:"acceptance,omitempty"`

	// REQUIRE(test) payload.
	TestName string `json:"test_name,omitempty"`

	// REQUIRE(evidence) payload.
	EvidenceClass string `json:"evidence_class,omitempty"`
	Retention     string `json:"retention,omitempty"`

	// ADD_COST_MODIFIER payload.
	Amount  float64 `json:"amount,omitempty"`
	Formula string  `json:"formula,omitempty"` // optional CEL expression over context

	// ADD_GATE payload.
	GateID string `json:"gate_id,omitempty"`

	// ESCALATE payload.
	EscalateTo string `json:"escalate_to,omitempty"`
}

// Rule is pure data: a trigger expression plus the actions to emit when it
// matches. Evaluation must be deterministic (spec §3).
type Rule struct {
	RuleID    string          `json:"rule_id"`
	Summary   string          `json:"summary"`
	Citations []string        `json:"citations"`
	Trigger   ruleexpr.Expr   `json:"trigger"`
	Actions   []ActionSpec    `json:"actions"`
	Severity  Severity        `json:"severity,omitempty"`
}

// Pack is an ordered collection of rules citing one external standard.
// Loaded from an external catalog; immutable once published.
type Pack struct {
	PackID   string   `json:"pack_id"`
	Industry string   `json:"industry"`
	Rules    []Rule   `json:"rules"`
}
