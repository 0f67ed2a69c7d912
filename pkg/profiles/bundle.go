package profiles

// ResolveBundle expands a bundle to its member profile ids, deduplicated,
// preserving first-occurrence declaration order. Bundles are referenced
// by id and never copied; lookup failures are the caller's concern.
func ResolveBundle(b *ProfileBundle) []string {
	seen := make(map[string]bool, len(b.ProfileIDs))
	out := make([]string, 0, len(b.ProfileIDs))
	for _, id := range b.ProfileIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ResolveStack merges a bundle's expansion with an explicit active-profile
// list, deduplicated preserving first occurrence: bundle ids first, then
// any directly declared active_profiles. Per spec.md §4.2 step 1, the
// industry's own contribution is its default_packs, unioned directly into
// the pack set at pack-resolution time rather than injected here as
// profile ids — see DESIGN.md's Open Question note.
func ResolveStack(bundle *ProfileBundle, activeProfiles []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	if bundle != nil {
		add(ResolveBundle(bundle))
	}
	add(activeProfiles)
	return out
}
