package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/soe"
)

// evaluateRequest is the wire shape for POST /soe/evaluate. RunID is
// never accepted from the caller: the engine itself is a pure function
// of it, but assigning one is a transport-level concern, generated here
// exactly once per request so a retried call gets a fresh, distinguishable
// run even if every other field is identical.
type evaluateRequest struct {
	IndustryProfile string         `json:"industry_profile"`
	HardwareClass   string         `json:"hardware_class,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	ActiveProfiles  []string       `json:"active_profiles,omitempty"`
	ProfileBundleID string         `json:"profile_bundle_id,omitempty"`
	AdditionalPacks []string       `json:"additional_packs,omitempty"`
	AllowDeprecated bool           `json:"allow_deprecated,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.IndustryProfile == "" {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "industry_profile is required", nil)
		return
	}

	run, err := s.Engine.Evaluate(soe.Input{
		RunID:           uuid.New().String(),
		IndustryProfile: req.IndustryProfile,
		HardwareClass:   req.HardwareClass,
		Context:         req.Context,
		ActiveProfiles:  req.ActiveProfiles,
		ProfileBundleID: req.ProfileBundleID,
		AdditionalPacks: req.AdditionalPacks,
		AllowDeprecated: req.AllowDeprecated,
	})

	principal, _ := PrincipalFromContext(r.Context())
	if err != nil {
		_ = audit.Denied(s.Audit, r.Context(), actorOf(principal), roleOf(principal), "soe_run", req.IndustryProfile, err.Error())
		writeDomainError(w, r, err)
		return
	}

	s.runs.put(run)
	_ = s.Audit.Record(r.Context(), audit.Event{
		Actor:  actorOf(principal),
		Role:   roleOf(principal),
		Type:   audit.EventSOERun,
		Entity: run.SOERunID,
		Result: audit.ResultAllowed,
	})

	writeJSON(w, http.StatusOK, run)
}

func actorOf(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}

func roleOf(p *Principal) string {
	if p == nil || len(p.Roles) == 0 {
		return ""
	}
	return string(p.Roles[0])
}
