package soe

import (
	"fmt"

	"github.com/tracepack/mfgplan/pkg/canonicalize"
)

// decisionIDLen is the fixed prefix length of a Decision.id hex digest.
// Spec.md leaves the choice of 12 or 16 open; 16 is fixed here for this
// implementation. Step ids (pkg/plan's computeStepID) use the full digest
// instead.
const decisionIDLen = 16

type decisionIDFields struct {
	RuleID     string `json:"rule_id"`
	PackID     string `json:"pack_id"`
	Action     string `json:"action"`
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
}

// computeDecisionID hashes exactly the fields spec.md §4.2 step 4 names,
// never the full decision payload — two rules in different packs that
// agree on these five fields must merge to the same id.
func computeDecisionID(ruleID, packID, action, objectType, objectID string) (string, error) {
	fields := decisionIDFields{
		RuleID:     ruleID,
		PackID:     packID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
	}
	digest, err := canonicalize.CanonicalHash(fields)
	if err != nil {
		return "", fmt.Errorf("soe: compute decision id: %w", err)
	}
	if len(digest) < decisionIDLen {
		return digest, nil
	}
	return digest[:decisionIDLen], nil
}
