// Package httpapi exposes the core engine over net/http: SOE
// evaluation, plan lifecycle, compliance reporting, export, and profile
// lifecycle endpoints, per spec.md §6.
package httpapi

import (
	"context"
	"net/http"
)

// Role is the closed set of roles spec.md §6 names.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOps      Role = "OPS"
	RoleQA       Role = "QA"
	RoleAdmin    Role = "ADMIN"
)

// Principal is the authenticated caller, extracted from a request by a
// RoleAuthenticator.
type Principal struct {
	Subject  string
	TenantID string
	Roles    []Role
}

func (p *Principal) hasRole(roles ...Role) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// RoleAuthenticator is the only auth dependency the core depends on.
// HTTP transport and token validation are an external collaborator;
// the engine never imports a concrete adapter, only this interface.
type RoleAuthenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// requireAuth wraps next, rejecting requests a RoleAuthenticator cannot
// authenticate. If allowedRoles is non-empty, the authenticated
// principal must hold at least one of them.
func requireAuth(auth RoleAuthenticator, allowedRoles []Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth == nil {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication not configured", nil)
			return
		}
		principal, err := auth.Authenticate(r)
		if err != nil || principal == nil {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing or invalid credentials", nil)
			return
		}
		if len(allowedRoles) > 0 && !principal.hasRole(allowedRoles...) {
			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role for this operation", nil)
			return
		}
		next(w, r.WithContext(withPrincipal(r.Context(), principal)))
	}
}
