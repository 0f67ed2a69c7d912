package httpapi

import (
	"net/http"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/compliance"
	"github.com/tracepack/mfgplan/pkg/domainerr"
	"github.com/tracepack/mfgplan/pkg/export"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/soe"
)

// runForPlanResult pairs a loaded plan with the soe.Run its decisions
// were produced against. run is nil when the plan was generated without
// one (a baseline-only plan), which handlers must check before calling
// into pkg/compliance, whose Generate dereferences it unconditionally;
// pkg/export's Export and AuditIntegrity accept a nil run.
type runForPlanResult struct {
	plan *plan.DatumPlan
	run  *soe.Run
}

// runForPlan resolves the soe.Run a plan's decisions were produced
// against, or fails with a clear domain error instead of letting a nil
// run reach pkg/compliance or pkg/export unannounced.
func (s *Server) runForPlan(id string) (*runForPlanResult, error) {
	p, err := s.plans.mustGet(id)
	if err != nil {
		return nil, err
	}
	if p.SOERunID == "" {
		return &runForPlanResult{plan: p}, nil
	}
	run, ok := s.runs.get(p.SOERunID)
	if !ok {
		return nil, domainerr.WithDetail(domainerr.CodeAuditIntegrityFailed,
			"plan references a soe_run_id this server has no record of",
			map[string]string{"plan_id": id, "soe_run_id": p.SOERunID})
	}
	return &runForPlanResult{plan: p, run: run}, nil
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}

	res, err := s.runForPlan(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if res.run == nil {
		writeError(w, r, http.StatusUnprocessableEntity, string(domainerr.CodeAuditIntegrityFailed),
			"plan has no associated soe run to report against", nil)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	generatedBy := actorOf(principal)

	report, err := compliance.Generate(res.plan, res.run, format, generatedBy, clockNow())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	_ = audit.Transition(s.Audit, r.Context(), generatedBy, roleOf(principal), id, string(res.plan.State), string(res.plan.State), "report generated")

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAuditIntegrity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.runForPlan(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	report := export.AuditIntegrity(res.plan, res.run, s.profiles.snapshot())
	status := http.StatusOK
	if !report.Passed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}
