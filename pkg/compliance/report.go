package compliance

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/tracepack/mfgplan/pkg/canonicalize"
	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/soe"
)

// Report is the rendered, hashed compliance report for one approved plan
// version. The renderer is a pure function of its inputs.
type Report struct {
	PlanID      string `json:"plan_id"`
	PlanVersion int    `json:"plan_version"`
	ReportHash  string `json:"report_hash"`
	GeneratedAt string `json:"generated_at"`
	GeneratedBy string `json:"generated_by"`
	Format      string `json:"format"`
	Body        string `json:"body"`
}

type reportData struct {
	PlanID       string
	PlanVersion  int
	GeneratedAt  string
	GeneratedBy  string
	ApprovedBy   string
	ApprovedAt   string
	StepCount    int
	TestCount    int
	Packs        []string
	Trace        []Entry
	Overrides    []plan.Override
	ProfileStack []soe.ProfileStackEntry
	Evidence     []plan.EvidenceIntent
	SOERunID     string
}

var reportTemplate = template.Must(template.New("compliance-report").Parse(`<!DOCTYPE html>
<html><body>
<h1>Compliance Report — {{.PlanID}} v{{.PlanVersion}}</h1>

<h2>1. Executive Summary</h2>
<p>Plan {{.PlanID}} version {{.PlanVersion}}, approved by {{.ApprovedBy}} at {{.ApprovedAt}}, comprising {{.StepCount}} steps and {{.TestCount}} tests.</p>

<h2>2. Scope</h2>
<p>SOE run {{.SOERunID}}.</p>

<h2>3. Standards Coverage</h2>
<ul>{{range .Packs}}<li>{{.}}</li>{{end}}</ul>

<h2>4. Compliance Traceability</h2>
<table><tr><th>Object Type</th><th>Object ID</th><th>Rule</th><th>Pack</th><th>Citations</th><th>Decision</th></tr>
{{range .Trace}}<tr><td>{{.ObjectType}}</td><td>{{.ObjectID}}</td><td>{{.RuleID}}</td><td>{{.PackID}}</td><td>{{range .Citations}}{{.}} {{end}}</td><td>{{.DecisionID}}</td></tr>
{{end}}</table>

<h2>5. Deviations &amp; Overrides</h2>
<ul>{{range .Overrides}}<li>{{.Constraint}}: {{.Reason}} ({{.UserID}}, {{.Timestamp}})</li>{{end}}</ul>

<h2>6. Approvals Trail</h2>
<p>Approved by {{.ApprovedBy}} at {{.ApprovedAt}}.</p>

<h2>7. Profile Stack</h2>
<ul>{{range .ProfileStack}}<li>{{.ProfileID}} ({{.ProfileType}}, layer {{.Layer}})</li>{{end}}</ul>

<h2>8. Evidence Requirements</h2>
<ul>{{range .Evidence}}<li>{{.EvidenceClass}} — retain {{.Retention}}</li>{{end}}</ul>

<h2>9. Audit Metadata</h2>
<p>Generated by {{.GeneratedBy}} at {{.GeneratedAt}}.</p>
</body></html>
`))

// Generate renders a Report. format must be "html"; p must be approved.
// No silent fallback for an unsupported format.
func Generate(p *plan.DatumPlan, run *soe.Run, format, generatedBy, generatedAt string) (*Report, error) {
	if format != "html" {
		return nil, domainerr.WithDetail(domainerr.CodeUnsupportedFormat,
			"only html reports are supported", map[string]string{"format": format})
	}
	if p.State != plan.StateApproved {
		return nil, domainerr.New(domainerr.CodePlanStateTransitionInval,
			fmt.Sprintf("cannot render a report for plan %s in state %s, require approved", p.PlanID, p.State))
	}

	var overrides []plan.Override
	for _, em := range p.EditMetadata {
		overrides = append(overrides, em.Overrides...)
	}

	data := reportData{
		PlanID:      p.PlanID,
		PlanVersion: p.Version,
		GeneratedAt: generatedAt,
		GeneratedBy: generatedBy,
		ApprovedBy:  p.ApprovedBy,
		ApprovedAt:  p.ApprovedAt,
		StepCount:   len(p.Steps),
		TestCount:   len(p.Tests),
		Packs:       run.ActivePacks,
		Trace:       Trace(p, run),
		Overrides:   overrides,
		ProfileStack: run.ProfileStack,
		Evidence:    p.EvidenceIntent,
		SOERunID:    p.SOERunID,
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("compliance: render report template: %w", err)
	}

	hash := canonicalize.HashBytes(buf.Bytes())
	return &Report{
		PlanID:      p.PlanID,
		PlanVersion: p.Version,
		ReportHash:  hash,
		GeneratedAt: generatedAt,
		GeneratedBy: generatedBy,
		Format:      format,
		Body:        buf.String(),
	}, nil
}
