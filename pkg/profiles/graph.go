package profiles

import (
	"fmt"
	"sort"

	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// ValidateGraph checks every type constraint and the acyclicity of the
// parent/child relation across the given profile set. all must contain
// every profile reachable from the ids being validated; callers that load
// a profile stack for an SOE run pass the full resolved set.
func ValidateGraph(all map[string]*StandardsProfile) error {
	if err := validateTypeConstraints(all); err != nil {
		return err
	}
	return detectCycles(all)
}

func validateTypeConstraints(all map[string]*StandardsProfile) error {
	for _, p := range all {
		for _, parentID := range p.ParentProfileIDs {
			parent, ok := all[parentID]
			if !ok {
				return domainerr.WithDetail(domainerr.CodeProfileGraphInvalid,
					"parent profile not found", map[string]string{
						"profile_id": p.ProfileID,
						"parent_id":  parentID,
					})
			}
			if !allowedParent(p.ProfileType, parent.ProfileType) {
				return domainerr.WithDetail(domainerr.CodeProfileGraphInvalid,
					fmt.Sprintf("%s profile %s cannot have %s parent %s",
						p.ProfileType, p.ProfileID, parent.ProfileType, parent.ProfileID),
					map[string]string{"profile_id": p.ProfileID, "parent_id": parentID})
			}
		}
	}
	return nil
}

// allowedParent enforces: DOMAIN's parents must be BASE; CUSTOMER_OVERRIDE's
// parents must be DOMAIN; BASE has no parents.
func allowedParent(child, parent ProfileType) bool {
	switch child {
	case TypeBase:
		return false
	case TypeDomain:
		return parent == TypeBase
	case TypeCustomerOverride:
		return parent == TypeDomain
	default:
		return false
	}
}

// detectCycles runs a DFS over the parent-edges graph, same shape as the
// recursion-stack cycle check used for module dependency graphs elsewhere
// in this codebase's lineage, adapted to profile ids and parent pointers.
func detectCycles(all map[string]*StandardsProfile) error {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) error
	visit = func(id string) error {
		visited[id] = true
		onStack[id] = true
		defer func() { onStack[id] = false }()

		p, ok := all[id]
		if !ok {
			return nil
		}
		for _, parentID := range p.ParentProfileIDs {
			if onStack[parentID] {
				return domainerr.WithDetail(domainerr.CodeProfileGraphInvalid,
					"cycle detected in profile parent graph",
					map[string]string{"profile_id": id, "parent_id": parentID})
			}
			if !visited[parentID] {
				if err := visit(parentID); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
