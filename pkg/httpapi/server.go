package httpapi

import (
	"net/http"
	"time"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/config"
	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/standards"
	"github.com/tracepack/mfgplan/pkg/store"
)

// Server wires the core engine and its supporting stores to net/http.
// It holds no business logic of its own: every handler delegates to
// pkg/soe, pkg/plan, pkg/profiles, pkg/compliance, or pkg/export and
// only translates between HTTP and their pure signatures.
type Server struct {
	Engine *soe.Engine
	Auth   RoleAuthenticator
	Audit  audit.Logger

	profiles *profileRegistry
	plans    *planRegistry
	runs     *runRegistry
	limiter  *TenantRateLimiter

	mux *http.ServeMux
}

// Deps is everything New needs to assemble a Server.
type Deps struct {
	Catalog   *config.ProfileCatalog
	Packs     *standards.Catalog
	Formulas  *soe.FormulaEvaluator
	ProfileDB store.VersionStore
	PlanDB    store.VersionStore
	Auth      RoleAuthenticator
	AuditLog  audit.Logger
	RateRPS   float64
	RateBurst int
}

// New assembles a Server from its dependencies and registers every
// route spec.md §6 names.
func New(d Deps) *Server {
	profReg := newProfileRegistry(d.Catalog, d.ProfileDB)
	planReg := newPlanRegistry(d.PlanDB)

	auditLog := d.AuditLog
	if auditLog == nil {
		auditLog = audit.NewLogger()
	}

	s := &Server{
		Engine: &soe.Engine{
			Profiles:   profReg,
			Bundles:    bundleLookupAdapter{profReg},
			Industries: industryLookupAdapter{profReg},
			Packs:      d.Packs,
			Formulas:   d.Formulas,
		},
		Auth:     d.Auth,
		Audit:    auditLog,
		profiles: profReg,
		plans:    planReg,
		runs:     newRunRegistry(),
		limiter:  NewTenantRateLimiter(nonZero(d.RateRPS, 20), nonZeroInt(d.RateBurst, 40)),
	}
	s.routes()
	return s
}

func nonZero(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handle(pattern string, roles []Role, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, requestLogger(traced(pattern, requireAuth(s.Auth, roles, s.limiter.middleware(h)))))
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()

	s.handle("POST /soe/evaluate", []Role{RoleOps, RoleQA, RoleAdmin, RoleCustomer}, s.handleEvaluate)

	s.handle("POST /plans/generate", []Role{RoleOps, RoleQA, RoleAdmin}, s.handleGeneratePlan)
	s.handle("PATCH /plans/{id}", []Role{RoleOps, RoleQA, RoleAdmin}, s.handleEditPlan)
	s.handle("POST /plans/{id}/submit", []Role{RoleOps, RoleQA, RoleAdmin}, s.handleSubmitPlan)
	s.handle("POST /plans/{id}/approve", []Role{RoleOps, RoleAdmin}, s.handleApprovePlan)
	s.handle("POST /plans/{id}/reject", []Role{RoleQA, RoleAdmin}, s.handleRejectPlan)
	s.handle("POST /plans/{id}/optimize", []Role{RoleOps, RoleAdmin}, s.handleOptimizePlan)
	s.handle("GET /plans/{id}/versions", []Role{RoleOps, RoleQA, RoleAdmin, RoleCustomer}, s.handlePlanVersions)
	s.handle("GET /plans/{id}/diff", []Role{RoleOps, RoleQA, RoleAdmin, RoleCustomer}, s.handlePlanDiff)
	s.handle("GET /plans/{id}/export/{format}", []Role{RoleOps, RoleAdmin, RoleCustomer}, s.handleExportPlan)

	s.handle("POST /compliance/plans/{id}/reports/generate", []Role{RoleQA, RoleAdmin, RoleCustomer}, s.handleGenerateReport)
	s.handle("GET /compliance/plans/{id}/audit-integrity", []Role{RoleQA, RoleAdmin}, s.handleAuditIntegrity)

	s.handle("POST /profiles/{id}/submit", []Role{RoleAdmin}, s.handleProfileSubmit)
	s.handle("POST /profiles/{id}/approve", []Role{RoleAdmin}, s.handleProfileApprove)
	s.handle("POST /profiles/{id}/reject", []Role{RoleAdmin}, s.handleProfileReject)
	s.handle("POST /profiles/{id}/deprecate", []Role{RoleAdmin}, s.handleProfileDeprecate)
	s.handle("GET /profiles/{id}/versions", []Role{RoleOps, RoleQA, RoleAdmin}, s.handleProfileVersions)
	s.handle("POST /profiles/bundles", []Role{RoleAdmin}, s.handleCreateBundle)
}

func clockNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
