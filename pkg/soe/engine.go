package soe

import (
	"fmt"
	"sort"

	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/ruleexpr"
	"github.com/tracepack/mfgplan/pkg/standards"
)

// ProfileLookup resolves a profile id to its current version. Implemented
// by whatever store holds published StandardsProfiles; the engine only
// ever reads through it.
type ProfileLookup interface {
	Get(id string) (*profiles.StandardsProfile, bool)
}

// BundleLookup resolves a bundle id to its member profile ids.
type BundleLookup interface {
	Get(id string) (*profiles.ProfileBundle, bool)
}

// IndustryLookup resolves an industry id to its read-only defaults.
type IndustryLookup interface {
	Get(id string) (*profiles.IndustryProfile, bool)
}

// Engine evaluates SOE runs against injected catalog/profile dependencies.
// It holds no mutable run state; every call to Evaluate is independent.
type Engine struct {
	Profiles  ProfileLookup
	Bundles   BundleLookup
	Industries IndustryLookup
	Packs     *standards.Catalog
	Formulas  *FormulaEvaluator
}

// Input is the complete set of parameters for one SOE evaluation.
type Input struct {
	RunID           string // caller-supplied; the engine performs no clock/random I/O
	IndustryProfile string
	HardwareClass   string
	Context         map[string]any
	ActiveProfiles  []string
	ProfileBundleID string
	AdditionalPacks []string
	AllowDeprecated bool
}

// Evaluate runs the full SOE pipeline per spec.md §4.2 steps 1-8.
func (e *Engine) Evaluate(in Input) (*Run, error) {
	industry, ok := e.Industries.Get(in.IndustryProfile)
	if !ok {
		return nil, domainerr.WithDetail(domainerr.CodePackNotFound,
			"unknown industry profile", map[string]string{"industry_profile": in.IndustryProfile})
	}

	var bundle *profiles.ProfileBundle
	if in.ProfileBundleID != "" {
		b, ok := e.Bundles.Get(in.ProfileBundleID)
		if !ok {
			return nil, domainerr.WithDetail(domainerr.CodeProfileGraphInvalid,
				"unknown profile bundle", map[string]string{"profile_bundle_id": in.ProfileBundleID})
		}
		bundle = b
	}

	profileIDs := profiles.ResolveStack(bundle, in.ActiveProfiles)

	closure, err := e.loadClosure(profileIDs)
	if err != nil {
		return nil, err
	}
	if err := profiles.ValidateGraph(closure); err != nil {
		return nil, err
	}
	for _, id := range profileIDs {
		if err := profiles.RequireUsable(closure[id], in.AllowDeprecated); err != nil {
			return nil, err
		}
	}

	stack := make([]ProfileStackEntry, 0, len(profileIDs))
	for _, id := range profileIDs {
		p := closure[id]
		stack = append(stack, ProfileStackEntry{
			ProfileID:        p.ProfileID,
			ProfileType:      string(p.ProfileType),
			Layer:            p.ProfileType.Layer(),
			ParentProfileIDs: p.ParentProfileIDs,
		})
	}

	packIDs := unionPackIDs(stack, closure, industry.DefaultPacks, in.AdditionalPacks)

	packs := make([]*standards.Pack, 0, len(packIDs))
	for _, id := range packIDs {
		pack, ok := e.Packs.Get(id)
		if !ok {
			return nil, domainerr.WithDetail(domainerr.CodePackNotFound,
				"referenced pack not found in catalog", map[string]string{"pack_id": id})
		}
		packs = append(packs, pack)
	}

	ctx := mergeContext(in)

	decisions, err := e.evaluateRules(packs, stack, closure, ctx)
	if err != nil {
		return nil, err
	}

	decisions, err = resolveConflicts(decisions, closure)
	if err != nil {
		return nil, err
	}

	gates := deriveGates(decisions)
	evidence := deriveEvidence(decisions)
	modifiers, err := e.deriveCostModifiers(decisions, ctx)
	if err != nil {
		return nil, err
	}

	run := &Run{
		SOERunID:         in.RunID,
		IndustryProfile:  in.IndustryProfile,
		HardwareClass:    in.HardwareClass,
		ActivePacks:      packIDs,
		ProfileStack:     stack,
		Decisions:        decisions,
		Gates:            gates,
		RequiredEvidence: evidence,
		CostModifiers:    modifiers,
		AuditReplay:      in.AllowDeprecated,
	}
	return run, nil
}

// loadClosure loads every profile reachable from seeds via ParentProfileIDs.
func (e *Engine) loadClosure(seeds []string) (map[string]*profiles.StandardsProfile, error) {
	closure := make(map[string]*profiles.StandardsProfile)
	var visit func(id string) error
	visit = func(id string) error {
		if _, done := closure[id]; done {
			return nil
		}
		p, ok := e.Profiles.Get(id)
		if !ok {
			return domainerr.WithDetail(domainerr.CodeProfileGraphInvalid,
				"referenced profile not found", map[string]string{"profile_id": id})
		}
		closure[id] = p
		for _, parentID := range p.ParentProfileIDs {
			if err := visit(parentID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range seeds {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return closure, nil
}

func unionPackIDs(stack []ProfileStackEntry, closure map[string]*profiles.StandardsProfile, industryDefaults, additional []string) []string {
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
	for _, entry := range stack {
		add(closure[entry.ProfileID].DefaultPacks)
	}
	add(industryDefaults)
	add(additional)
	sort.Strings(out)
	return out
}

func mergeContext(in Input) ruleexpr.Context {
	ctx := make(ruleexpr.Context, len(in.Context)+2)
	for k, v := range in.Context {
		ctx[k] = v
	}
	ctx["industry_profile"] = in.IndustryProfile
	if in.HardwareClass != "" {
		ctx["hardware_class"] = in.HardwareClass
	}
	return ctx
}

func (e *Engine) evaluateRules(packs []*standards.Pack, stack []ProfileStackEntry, closure map[string]*profiles.StandardsProfile, ctx ruleexpr.Context) ([]Decision, error) {
	var decisions []Decision
	seen := make(map[string]bool)

	for _, pack := range packs {
		src := profileSourceFor(pack.PackID, stack, closure)
		for _, rule := range pack.Rules {
			if !ruleexpr.Eval(rule.Trigger, ctx) {
				continue
			}
			for _, spec := range rule.Actions {
				id, err := computeDecisionID(rule.RuleID, pack.PackID, string(spec.Action), string(spec.ObjectType), spec.ObjectID)
				if err != nil {
					return nil, err
				}
				if seen[id] {
					continue
				}
				seen[id] = true

				decisions = append(decisions, Decision{
					ID:            id,
					Action:        spec.Action,
					ObjectType:    spec.ObjectType,
					ObjectID:      spec.ObjectID,
					Enforcement:   spec.Enforcement,
					ProfileSource: src,
					Spec:          spec,
					Why: Why{
						RuleID:    rule.RuleID,
						PackID:    pack.PackID,
						Citations: rule.Citations,
						Summary:   rule.Summary,
						Text:      renderWhy(pack.Industry, rule, spec),
					},
				})
			}
		}
	}
	return decisions, nil
}

func renderWhy(industry string, rule standards.Rule, spec standards.ActionSpec) string {
	text := fmt.Sprintf("[%s] %s requires %s on %s %s", industry, rule.RuleID, spec.Action, spec.ObjectType, spec.ObjectID)
	if rule.Summary != "" {
		text += ": " + rule.Summary
	}
	if len(rule.Citations) > 0 {
		text += fmt.Sprintf(" (%s)", joinCitations(rule.Citations))
	}
	return text
}

func joinCitations(cites []string) string {
	out := ""
	for i, c := range cites {
		if i > 0 {
			out += "; "
		}
		out += c
	}
	return out
}

// profileSourceFor attributes a pack to the highest-layer profile in the
// stack whose default_packs list contains packID, ties broken by
// profile_id ascending.
func profileSourceFor(packID string, stack []ProfileStackEntry, closure map[string]*profiles.StandardsProfile) *ProfileSource {
	var best *ProfileStackEntry
	for i := range stack {
		entry := &stack[i]
		if !containsString(closure[entry.ProfileID].DefaultPacks, packID) {
			continue
		}
		switch {
		case best == nil:
			best = entry
		case entry.Layer > best.Layer:
			best = entry
		case entry.Layer == best.Layer && entry.ProfileID < best.ProfileID:
			best = entry
		}
	}
	if best == nil {
		return nil
	}
	return &ProfileSource{ProfileID: best.ProfileID, ProfileType: best.ProfileType, Layer: best.Layer}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// deriveGates builds one Gate per ADD_GATE decision. A gate "points to"
// every decision — other than its own ADD_GATE decision — that targets
// the same (object_type, object_id) it guards; the gate is blocked iff
// any of those decisions carries BLOCK_RELEASE enforcement (spec §4.2
// step 7). Two rules can independently gate the same object and share
// exactly the decisions that target it; gates on unrelated objects never
// see each other's decisions.
func deriveGates(decisions []Decision) []Gate {
	type gateKey struct{ objectType, objectID string }

	byGate := make(map[string]*Gate)
	var order []string
	gatedObject := make(map[string]gateKey)

	for _, d := range decisions {
		if d.Action != standards.ActionAddGate {
			continue
		}
		gateID := d.Spec.GateID
		if _, ok := byGate[gateID]; !ok {
			byGate[gateID] = &Gate{GateID: gateID, Status: GateOpen}
			order = append(order, gateID)
			gatedObject[gateID] = gateKey{string(d.ObjectType), d.ObjectID}
		}
	}

	for _, gateID := range order {
		key := gatedObject[gateID]
		for _, d := range decisions {
			if d.Action == standards.ActionAddGate && d.Spec.GateID == gateID {
				continue
			}
			if string(d.ObjectType) != key.objectType || d.ObjectID != key.objectID {
				continue
			}
			if d.Enforcement != standards.EnforcementBlockRelease {
				continue
			}
			byGate[gateID].BlockedBy = append(byGate[gateID].BlockedBy, d.ID)
		}
	}

	gates := make([]Gate, 0, len(order))
	for _, id := range order {
		g := byGate[id]
		if len(g.BlockedBy) > 0 {
			g.Status = GateBlocked
		}
		gates = append(gates, *g)
	}
	return gates
}

func deriveEvidence(decisions []Decision) []RequiredEvidence {
	var out []RequiredEvidence
	for _, d := range decisions {
		if d.Action != standards.ActionRequire || d.ObjectType != standards.ObjectEvidence {
			continue
		}
		out = append(out, RequiredEvidence{
			DecisionID:    d.ID,
			ObjectID:      d.ObjectID,
			EvidenceClass: d.Spec.EvidenceClass,
			Retention:     d.Spec.Retention,
		})
	}
	return out
}

func (e *Engine) deriveCostModifiers(decisions []Decision, ctx ruleexpr.Context) ([]CostModifier, error) {
	var out []CostModifier
	for _, d := range decisions {
		if d.Action != standards.ActionAddCostModifier {
			continue
		}
		amount := d.Spec.Amount
		if d.Spec.Formula != "" {
			if e.Formulas == nil {
				return nil, domainerr.New(domainerr.CodePackNotFound, "cost modifier formula present but no formula evaluator configured")
			}
			v, err := e.Formulas.Eval(d.Spec.Formula, ctx)
			if err != nil {
				return nil, err
			}
			amount = v
		}
		out = append(out, CostModifier{
			DecisionID: d.ID,
			ObjectID:   d.ObjectID,
			Amount:     amount,
			Formula:    d.Spec.Formula,
		})
	}
	return out, nil
}
