package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tracepack/mfgplan/pkg/domainerr"
)

// errorBody is the wire shape for every non-2xx response: a flat
// {code, message, detail?} object. This is a deliberate departure from
// RFC 7807 problem-details: callers are automation (CI gates, planning
// tools) that switch on code, not humans reading a problem type URI.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, detail any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: message, Detail: detail})
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "message", message)
	} else {
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "message", message)
	}
}

// writeDomainError maps a domainerr.Code to its HTTP status and writes
// the error body. Any error without a recognized domainerr.Code is
// treated as an unexpected internal failure.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domainerr.CodeOf(err)
	if code == "" {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	status := statusForCode(code)
	var detail any
	var de *domainerr.Error
	if ok := asDomainErr(err, &de); ok {
		detail = de.Detail
	}
	writeError(w, r, status, string(code), err.Error(), detail)
}

func asDomainErr(err error, target **domainerr.Error) bool {
	for err != nil {
		if de, ok := err.(*domainerr.Error); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func statusForCode(code domainerr.Code) int {
	switch code {
	case domainerr.CodeSOEBlocked, domainerr.CodeProfileUnusable, domainerr.CodeProfileGraphInvalid,
		domainerr.CodePackNotFound, domainerr.CodeRuleConflict:
		return http.StatusUnprocessableEntity
	case domainerr.CodePlanInvalidEdit, domainerr.CodeOverrideMissingReason,
		domainerr.CodePlanStateTransitionInval, domainerr.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case domainerr.CodePlanApprovedImmutable, domainerr.CodeExportRequiresApproval,
		domainerr.CodeTierInsufficient:
		return http.StatusConflict
	case domainerr.CodeVersionConflict:
		return http.StatusConflict
	case domainerr.CodeAuditIntegrityFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
