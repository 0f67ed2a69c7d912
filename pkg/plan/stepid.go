package plan

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/canonicalize"
)

type stepIDFields struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Sequence      int            `json:"sequence"`
	Parameters    map[string]any `json:"parameters"`
	SourceRules   []string       `json:"source_rules"`
	SOEDecisionID string         `json:"soe_decision_id"`
}

// computeStepID hashes exactly the content-bearing fields spec.md §6
// names for Step.step_id, over the full SHA-256 hex digest.
func computeStepID(s Step) (string, error) {
	digest, err := canonicalize.CanonicalHash(stepIDFields{
		Type:          s.Type,
		Title:         s.Title,
		Sequence:      s.Sequence,
		Parameters:    s.Parameters,
		SourceRules:   s.SourceRules,
		SOEDecisionID: s.SOEDecisionID,
	})
	if err != nil {
		return "", fmt.Errorf("plan: compute step id: %w", err)
	}
	return digest, nil
}
