package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/profiles"
)

func (s *Server) handleProfileSubmit(w http.ResponseWriter, r *http.Request) {
	s.profileTransition(w, r, func(p *profiles.StandardsProfile, actor string) error {
		return profiles.Submit(p, actor)
	})
}

func (s *Server) handleProfileApprove(w http.ResponseWriter, r *http.Request) {
	s.profileTransition(w, r, func(p *profiles.StandardsProfile, actor string) error {
		return profiles.Approve(p, actor, clockNow())
	})
}

func (s *Server) handleProfileReject(w http.ResponseWriter, r *http.Request) {
	s.profileTransition(w, r, func(p *profiles.StandardsProfile, actor string) error {
		return profiles.Reject(p)
	})
}

func (s *Server) handleProfileDeprecate(w http.ResponseWriter, r *http.Request) {
	s.profileTransition(w, r, func(p *profiles.StandardsProfile, actor string) error {
		return profiles.Deprecate(p)
	})
}

// profileTransition is the shared load/mutate/persist/audit sequence
// behind submit, approve, reject, and deprecate: they differ only in
// which pure lifecycle function they call. A transition mutates the
// in-memory profile in place and then persists a new version record, so
// the edit itself must happen on a private copy, never the registry's
// shared pointer.
func (s *Server) profileTransition(w http.ResponseWriter, r *http.Request, apply func(p *profiles.StandardsProfile, actor string) error) {
	id := r.PathValue("id")
	cur, err := s.profiles.mustGet(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	actor := actorOf(principal)
	from := cur.State

	next := *cur
	if err := apply(&next, actor); err != nil {
		_ = audit.Denied(s.Audit, r.Context(), actor, roleOf(principal), id, string(from), err.Error())
		writeDomainError(w, r, err)
		return
	}
	if err := s.profiles.persist(r.Context(), &next); err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	_ = audit.Transition(s.Audit, r.Context(), actor, roleOf(principal), id, string(from), string(next.State), "")

	writeJSON(w, http.StatusOK, &next)
}

func (s *Server) handleProfileVersions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	recs, err := s.profiles.versions(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateBundle(w http.ResponseWriter, r *http.Request) {
	var b profiles.ProfileBundle
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if b.BundleID == "" {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "bundle_id is required", nil)
		return
	}
	if len(b.ProfileIDs) == 0 {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "profile_ids must not be empty", nil)
		return
	}

	if err := s.profiles.createBundle(&b); err != nil {
		writeDomainError(w, r, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	_ = audit.Transition(s.Audit, r.Context(), actorOf(principal), roleOf(principal), b.BundleID, "", "created", "bundle created")

	writeJSON(w, http.StatusCreated, &b)
}
