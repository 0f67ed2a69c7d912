// Package export implements hardened, tier-gated export of approved
// plans and the audit integrity check that verifies one.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/tracepack/mfgplan/pkg/canonicalize"
	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/soe"
)

// Format is the closed set of export formats.
type Format string

const (
	FormatCSV          Format = "csv"
	FormatJSON         Format = "json"
	FormatPlacementCSV Format = "placement_csv"
)

// executionOutputTierFloor is the minimum plan tier required for an
// export that includes execution outputs (placement_csv and json, which
// embeds step parameters machines would act on).
const executionOutputTierFloor = 3

// Provenance is embedded in every JSON export.
type Provenance struct {
	PlanVersion       int                     `json:"plan_version"`
	ProfileStack      []soe.ProfileStackEntry `json:"profile_stack"`
	ApprovedBy        string                  `json:"approved_by"`
	ApprovedAt        string                  `json:"approved_at"`
	ExportGeneratedAt string                  `json:"export_generated_at"`
	Findings          []Finding               `json:"findings,omitempty"`
}

// JSONExport is the full export payload for format=json.
type JSONExport struct {
	Plan        *plan.DatumPlan `json:"plan"`
	Provenance  Provenance      `json:"provenance"`
	ContentHash string          `json:"content_hash"`
}

// Export dispatches to the format-specific exporter, enforcing the
// approved-plan and tier-gating guards shared by all formats.
// profileByID is only consulted for format=json, to carry any
// PROFILE_DEPRECATED_IN_ACTIVE_ARTIFACT finding into provenance; per
// spec.md §8 scenario 6 a deprecated profile in the stack does not
// block the export, it rides along as a finding.
func Export(p *plan.DatumPlan, run *soe.Run, profileByID map[string]*profiles.StandardsProfile, format Format, generatedAt string) ([]byte, error) {
	if p.State != plan.StateApproved {
		return nil, domainerr.New(domainerr.CodeExportRequiresApproval,
			fmt.Sprintf("plan %s is %s, export requires approved", p.PlanID, p.State))
	}
	if needsExecutionTier(format) && p.Tier < executionOutputTierFloor {
		return nil, domainerr.WithDetail(domainerr.CodeTierInsufficient,
			"export with execution outputs requires tier >= 3",
			map[string]int{"tier": p.Tier, "required": executionOutputTierFloor})
	}

	switch format {
	case FormatCSV:
		return exportCSV(p)
	case FormatPlacementCSV:
		return exportPlacementCSV(p)
	case FormatJSON:
		return exportJSON(p, run, profileByID, generatedAt)
	default:
		return nil, domainerr.WithDetail(domainerr.CodeUnsupportedFormat,
			"unsupported export format", map[string]string{"format": string(format)})
	}
}

func needsExecutionTier(f Format) bool {
	return f == FormatPlacementCSV || f == FormatJSON
}

func exportCSV(p *plan.DatumPlan) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"step_id", "type", "sequence", "required", "locked_sequence", "soe_decision_id"})
	for _, s := range p.Steps {
		_ = w.Write([]string{
			s.StepID, s.Type, itoa(s.Sequence), boolstr(s.Required), boolstr(s.LockedSequence), s.SOEDecisionID,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func exportPlacementCSV(p *plan.DatumPlan) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"step_id", "type", "sequence", "parameters", "acceptance"})
	for _, s := range p.Steps {
		params, err := json.Marshal(s.Parameters)
		if err != nil {
			return nil, fmt.Errorf("export: marshal step parameters: %w", err)
		}
		_ = w.Write([]string{s.StepID, s.Type, itoa(s.Sequence), string(params), s.Acceptance})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: write placement csv: %w", err)
	}
	return buf.Bytes(), nil
}

func exportJSON(p *plan.DatumPlan, run *soe.Run, profileByID map[string]*profiles.StandardsProfile, generatedAt string) ([]byte, error) {
	var stack []soe.ProfileStackEntry
	var findings []Finding
	if run != nil {
		stack = run.ProfileStack
		for _, entry := range stack {
			prof, ok := profileByID[entry.ProfileID]
			if ok && prof.State == profiles.StateDeprecated {
				findings = append(findings, Finding{
					Code:      CodeProfileDeprecatedInActiveArtifact,
					ProfileID: prof.ProfileID,
					Detail:    fmt.Sprintf("profile %s is deprecated but referenced by this plan's active SOE run", prof.ProfileID),
				})
			}
		}
	}
	prov := Provenance{
		PlanVersion:       p.Version,
		ProfileStack:      stack,
		ApprovedBy:        p.ApprovedBy,
		ApprovedAt:        p.ApprovedAt,
		ExportGeneratedAt: generatedAt,
		Findings:          findings,
	}

	withoutHash := struct {
		Plan       *plan.DatumPlan `json:"plan"`
		Provenance Provenance      `json:"provenance"`
	}{Plan: p, Provenance: prov}

	hash, err := canonicalize.CanonicalHash(withoutHash)
	if err != nil {
		return nil, fmt.Errorf("export: hash json export content: %w", err)
	}

	out := JSONExport{Plan: p, Provenance: prov, ContentHash: hash}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal json export: %w", err)
	}
	return b, nil
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func boolstr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
