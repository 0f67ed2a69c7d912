package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/export"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/soe"
)

type generatePlanRequest struct {
	QuoteID  string `json:"quote_id"`
	Tier     int    `json:"tier"`
	SOERunID string `json:"soe_run_id,omitempty"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.QuoteID == "" {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "quote_id is required", nil)
		return
	}

	var run *soe.Run
	if req.SOERunID != "" {
		found, ok := s.runs.get(req.SOERunID)
		if !ok {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown soe_run_id", map[string]string{"soe_run_id": req.SOERunID})
			return
		}
		run = found
	}

	p, err := plan.Generate(plan.Quote{QuoteID: req.QuoteID, Tier: req.Tier}, run)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}

	p.PlanID = uuid.New().String()
	if err := s.plans.persist(r.Context(), p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	_ = audit.Transition(s.Audit, r.Context(), actorOf(principal), roleOf(principal), p.PlanID, "", string(p.State), "plan generated")

	writeJSON(w, http.StatusCreated, p)
}

type editPlanRequest struct {
	Ops       []plan.EditOp    `json:"ops"`
	Reason    string           `json:"reason"`
	Overrides []plan.Override  `json:"overrides,omitempty"`
}

func (s *Server) handleEditPlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cur, err := s.plans.mustGet(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req editPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	editedBy := actorOf(principal)

	next, err := plan.Edit(cur, req.Ops, req.Reason, req.Overrides, editedBy, clockNow())
	if err != nil {
		_ = audit.Denied(s.Audit, r.Context(), editedBy, roleOf(principal), id, string(cur.State), err.Error())
		writeDomainError(w, r, err)
		return
	}
	if err := s.plans.persist(r.Context(), next); err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	_ = audit.Transition(s.Audit, r.Context(), editedBy, roleOf(principal), id, string(cur.State), string(next.State), req.Reason)

	writeJSON(w, http.StatusOK, next)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	s.planTransition(w, r, func(p *plan.DatumPlan, req reasonRequest, actor string) error {
		return plan.Submit(p, req.Reason)
	})
}

func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	s.planTransition(w, r, func(p *plan.DatumPlan, req reasonRequest, actor string) error {
		return plan.Approve(p, req.Reason, actor, clockNow())
	})
}

func (s *Server) handleRejectPlan(w http.ResponseWriter, r *http.Request) {
	s.planTransition(w, r, func(p *plan.DatumPlan, req reasonRequest, actor string) error {
		return plan.Reject(p, req.Reason)
	})
}

// planTransition is the shared load/decode/mutate/persist/audit sequence
// behind submit, approve, and reject: they differ only in which pure
// state-machine function they call.
func (s *Server) planTransition(w http.ResponseWriter, r *http.Request, apply func(p *plan.DatumPlan, req reasonRequest, actor string) error) {
	id := r.PathValue("id")
	p, err := s.plans.mustGet(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	actor := actorOf(principal)
	from := p.State

	if err := apply(p, req, actor); err != nil {
		_ = audit.Denied(s.Audit, r.Context(), actor, roleOf(principal), id, string(from), err.Error())
		writeDomainError(w, r, err)
		return
	}
	if err := s.plans.persistTransition(r.Context(), p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	_ = audit.Transition(s.Audit, r.Context(), actor, roleOf(principal), id, string(from), string(p.State), req.Reason)

	writeJSON(w, http.StatusOK, p)
}

type optimizeRequest struct {
	Objective string `json:"objective"`
}

func (s *Server) handleOptimizePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cur, err := s.plans.mustGet(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	actor := actorOf(principal)

	next, err := plan.Optimize(cur, plan.Objective(req.Objective), actor, clockNow())
	if err != nil {
		_ = audit.Denied(s.Audit, r.Context(), actor, roleOf(principal), id, string(cur.State), err.Error())
		writeDomainError(w, r, err)
		return
	}
	if err := s.plans.persist(r.Context(), next); err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	_ = audit.Transition(s.Audit, r.Context(), actor, roleOf(principal), id, string(cur.State), string(next.State), "optimize:"+req.Objective)

	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handlePlanVersions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	recs, err := s.plans.versions(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handlePlanDiff(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := strconv.Atoi(r.URL.Query().Get("a"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "query parameter a must be an integer version", nil)
		return
	}
	b, err := strconv.Atoi(r.URL.Query().Get("b"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "query parameter b must be an integer version", nil)
		return
	}

	from, err := s.plans.versionRecord(r.Context(), id, a)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}
	to, err := s.plans.versionRecord(r.Context(), id, b)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, plan.ComputeDiff(from, to))
}

func (s *Server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := normalizeFormat(r.PathValue("format"))

	p, err := s.plans.mustGet(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var run *soe.Run
	if p.SOERunID != "" {
		if found, ok := s.runs.get(p.SOERunID); ok {
			run = found
		}
	}

	body, err := export.Export(p, run, s.profiles.snapshot(), export.Format(format), clockNow())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	_ = s.Audit.Record(r.Context(), audit.Event{
		Actor:  actorOf(principal),
		Role:   roleOf(principal),
		Type:   audit.EventExport,
		Entity: id,
		Result: audit.ResultAllowed,
		Metadata: map[string]any{"format": format},
	})

	w.Header().Set("Content-Type", contentTypeForFormat(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// normalizeFormat maps the hyphenated path segment the export route uses
// to the underscored Format constants pkg/export declares.
func normalizeFormat(pathFormat string) string {
	if pathFormat == "placement-csv" {
		return "placement_csv"
	}
	return pathFormat
}

func contentTypeForFormat(format string) string {
	if format == "json" {
		return "application/json"
	}
	return "text/csv"
}
