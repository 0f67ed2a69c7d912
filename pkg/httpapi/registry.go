package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tracepack/mfgplan/pkg/config"
	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/store"
)

const (
	entityKindPlan    = "plan"
	entityKindProfile = "profile"
)

// profileRegistry is the live, mutable view of the profile catalog: a
// read-only config.ProfileCatalog seeds it at startup, and every
// lifecycle transition after that is appended to a store.VersionStore
// so profile history survives a restart. It implements the single-
// method Get(id) shape soe.Engine's ProfileLookup wants directly, so it
// can be handed to the engine with no adapter.
type profileRegistry struct {
	mu      sync.RWMutex
	seed    *config.ProfileCatalog
	store   store.VersionStore
	cur     map[string]*profiles.StandardsProfile
	bundles map[string]*profiles.ProfileBundle
}

func newProfileRegistry(seed *config.ProfileCatalog, vs store.VersionStore) *profileRegistry {
	cur := make(map[string]*profiles.StandardsProfile, len(seed.Profiles))
	for id, p := range seed.Profiles {
		clone := *p
		cur[id] = &clone
	}
	return &profileRegistry{seed: seed, store: vs, cur: cur, bundles: make(map[string]*profiles.ProfileBundle)}
}

// snapshot returns a point-in-time copy of every known profile, keyed by
// id, for integrity checks that need to look several profiles up by id
// without holding the registry lock across the whole operation.
func (r *profileRegistry) snapshot() map[string]*profiles.StandardsProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*profiles.StandardsProfile, len(r.cur))
	for id, p := range r.cur {
		out[id] = p
	}
	return out
}

// createBundle registers a new bundle created at runtime. Bundles carry
// no lifecycle state of their own (spec.md treats them as catalog data),
// so this is a plain insert, not a state transition; a bundle id already
// in use is a conflict.
func (r *profileRegistry) createBundle(b *profiles.ProfileBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seed.Bundles[b.BundleID]; ok {
		return domainerr.WithDetail(domainerr.CodePlanInvalidEdit,
			"bundle id already exists", map[string]string{"bundle_id": b.BundleID})
	}
	if _, ok := r.bundles[b.BundleID]; ok {
		return domainerr.WithDetail(domainerr.CodePlanInvalidEdit,
			"bundle id already exists", map[string]string{"bundle_id": b.BundleID})
	}
	r.bundles[b.BundleID] = b
	return nil
}

// Get satisfies soe.ProfileLookup.
func (r *profileRegistry) Get(id string) (*profiles.StandardsProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.cur[id]
	return p, ok
}

// GetIndustry and GetBundle pass through to the static seed catalog:
// spec.md treats industries and bundles as catalog data, not entities
// with their own submit/approve lifecycle.
func (r *profileRegistry) GetIndustry(id string) (*profiles.IndustryProfile, bool) {
	return r.seed.GetIndustry(id)
}

func (r *profileRegistry) GetBundle(id string) (*profiles.ProfileBundle, bool) {
	if b, ok := r.seed.GetBundle(id); ok {
		return b, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[id]
	return b, ok
}

// bundleLookupAdapter and industryLookupAdapter adapt profileRegistry's
// GetBundle/GetIndustry to the single-method Get(id) shape soe.Engine's
// BundleLookup/IndustryLookup interfaces expect, the same pattern
// pkg/config's BundleRegistry/IndustryRegistry use for ProfileCatalog.
type bundleLookupAdapter struct{ *profileRegistry }

func (b bundleLookupAdapter) Get(id string) (*profiles.ProfileBundle, bool) { return b.GetBundle(id) }

type industryLookupAdapter struct{ *profileRegistry }

func (i industryLookupAdapter) Get(id string) (*profiles.IndustryProfile, bool) {
	return i.GetIndustry(id)
}

func (r *profileRegistry) persist(ctx context.Context, p *profiles.StandardsProfile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("httpapi: marshal profile: %w", err)
	}
	latest, err := r.store.LatestVersion(ctx, entityKindProfile, p.ProfileID)
	next := 1
	if err == nil {
		next = latest.Version + 1
	}
	if err := r.store.Create(ctx, store.Record{
		EntityKind: entityKindProfile,
		EntityID:   p.ProfileID,
		Version:    next,
		State:      string(p.State),
		Payload:    payload,
	}); err != nil {
		return err
	}
	r.mu.Lock()
	r.cur[p.ProfileID] = p
	r.mu.Unlock()
	return nil
}

func (r *profileRegistry) mustGet(id string) (*profiles.StandardsProfile, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, domainerr.WithDetail(domainerr.CodePackNotFound,
			"unknown profile", map[string]string{"profile_id": id})
	}
	return p, nil
}

func (r *profileRegistry) versions(ctx context.Context, id string) ([]store.Record, error) {
	return r.store.ListVersions(ctx, entityKindProfile, id)
}

// planRegistry is the analogous live store for DatumPlan versions.
type planRegistry struct {
	mu    sync.RWMutex
	store store.VersionStore
	cur   map[string]*plan.DatumPlan
}

func newPlanRegistry(vs store.VersionStore) *planRegistry {
	return &planRegistry{store: vs, cur: make(map[string]*plan.DatumPlan)}
}

func (r *planRegistry) get(id string) (*plan.DatumPlan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.cur[id]
	return p, ok
}

func (r *planRegistry) mustGet(id string) (*plan.DatumPlan, error) {
	p, ok := r.get(id)
	if !ok {
		return nil, domainerr.WithDetail(domainerr.CodePlanInvalidEdit,
			"unknown plan", map[string]string{"plan_id": id})
	}
	return p, nil
}

func (r *planRegistry) persist(ctx context.Context, p *plan.DatumPlan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("httpapi: marshal plan: %w", err)
	}
	if err := r.store.Create(ctx, store.Record{
		EntityKind: entityKindPlan,
		EntityID:   p.PlanID,
		Version:    p.Version,
		State:      string(p.State),
		Payload:    payload,
	}); err != nil {
		return err
	}
	r.mu.Lock()
	r.cur[p.PlanID] = p
	r.mu.Unlock()
	return nil
}

// persistTransition records a plan mutated by submit/approve/reject —
// the three lifecycle transitions spec.md §4.4 does not document as
// bumping Version. Generate/Edit/Optimize always hand persist a plan
// whose Version is one past what's already stored, so Create's
// write-once compare-and-swap is exactly right for them; a transition
// hands back the SAME Version Create already wrote, so the store row
// must be updated in place instead.
func (r *planRegistry) persistTransition(ctx context.Context, p *plan.DatumPlan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("httpapi: marshal plan: %w", err)
	}
	if err := r.store.Update(ctx, store.Record{
		EntityKind: entityKindPlan,
		EntityID:   p.PlanID,
		Version:    p.Version,
		State:      string(p.State),
		Payload:    payload,
	}); err != nil {
		return err
	}
	r.mu.Lock()
	r.cur[p.PlanID] = p
	r.mu.Unlock()
	return nil
}

func (r *planRegistry) versionRecord(ctx context.Context, id string, version int) (*plan.DatumPlan, error) {
	rec, err := r.store.Load(ctx, entityKindPlan, id, version)
	if err != nil {
		return nil, err
	}
	var p plan.DatumPlan
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("httpapi: unmarshal plan version: %w", err)
	}
	return &p, nil
}

func (r *planRegistry) versions(ctx context.Context, id string) ([]store.Record, error) {
	return r.store.ListVersions(ctx, entityKindPlan, id)
}

// runRegistry holds completed SOE runs in memory, keyed by soe_run_id,
// so a later plan generation, export, or compliance call can join back
// to the run that produced a plan's decisions. Runs are not versioned
// entities in their own right (spec.md §6's persisted layout names only
// plans and profiles), so this is a plain process-lifetime cache rather
// than a store.VersionStore-backed history.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*soe.Run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*soe.Run)}
}

func (r *runRegistry) put(run *soe.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.SOERunID] = run
}

func (r *runRegistry) get(id string) (*soe.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}
