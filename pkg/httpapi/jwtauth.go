package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims the default authenticator expects: a
// registered subject plus the tenant/role binding spec.md §6's role
// matrix is checked against.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// JWTAuthenticator is the default RoleAuthenticator: it validates a
// bearer token against a single HMAC signing key read from the
// environment at construction time. It is a reference implementation
// of the interface spec.md §1 treats as an external collaborator —
// a deployment is free to substitute mTLS, OIDC, or any other
// RoleAuthenticator without the core ever knowing.
type JWTAuthenticator struct {
	key []byte
}

// NewJWTAuthenticator reads the signing key from the environment
// variable named by envVar. A blank or unset key makes every request
// fail closed: an authenticator with no key never validates a token.
func NewJWTAuthenticator(envVar string) *JWTAuthenticator {
	return &JWTAuthenticator{key: []byte(os.Getenv(envVar))}
}

// Authenticate implements RoleAuthenticator.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	if len(a.key) == 0 {
		return nil, fmt.Errorf("httpapi: authenticator has no signing key configured")
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, fmt.Errorf("httpapi: missing or malformed bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("httpapi: unexpected signing method %v", t.Header["alg"])
		}
		return a.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("httpapi: token validation failed: %w", err)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("httpapi: token missing subject or tenant binding")
	}

	roles := make([]Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, Role(r))
	}
	return &Principal{Subject: claims.Subject, TenantID: claims.TenantID, Roles: roles}, nil
}
