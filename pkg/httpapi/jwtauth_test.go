package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key []byte, sub, tenant string, roles []string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		TenantID: tenant,
		Roles:    roles,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	t.Setenv("SOE_TEST_JWT_KEY", "test-signing-key")
	auth := NewJWTAuthenticator("SOE_TEST_JWT_KEY")

	tok := signToken(t, []byte("test-signing-key"), "user-1", "tenant-a", []string{"OPS", "ADMIN"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/plans/p1/versions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	principal, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.Subject)
	assert.Equal(t, "tenant-a", principal.TenantID)
	assert.True(t, principal.hasRole(RoleOps))
	assert.True(t, principal.hasRole(RoleAdmin))
	assert.False(t, principal.hasRole(RoleCustomer))
}

func TestJWTAuthenticator_NoKeyConfiguredFailsClosed(t *testing.T) {
	t.Setenv("SOE_TEST_JWT_KEY_UNSET", "")
	auth := NewJWTAuthenticator("SOE_TEST_JWT_KEY_UNSET")

	req := httptest.NewRequest(http.MethodGet, "/plans/p1/versions", nil)
	req.Header.Set("Authorization", "Bearer anything")

	_, err := auth.Authenticate(req)
	assert.Error(t, err)
}

func TestJWTAuthenticator_MissingBearerHeader(t *testing.T) {
	t.Setenv("SOE_TEST_JWT_KEY", "test-signing-key")
	auth := NewJWTAuthenticator("SOE_TEST_JWT_KEY")

	req := httptest.NewRequest(http.MethodGet, "/plans/p1/versions", nil)
	_, err := auth.Authenticate(req)
	assert.Error(t, err)
}

func TestJWTAuthenticator_WrongSigningKeyRejected(t *testing.T) {
	t.Setenv("SOE_TEST_JWT_KEY", "test-signing-key")
	auth := NewJWTAuthenticator("SOE_TEST_JWT_KEY")

	tok := signToken(t, []byte("a-different-key"), "user-1", "tenant-a", []string{"OPS"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/plans/p1/versions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	_, err := auth.Authenticate(req)
	assert.Error(t, err)
}

func TestJWTAuthenticator_MissingTenantRejected(t *testing.T) {
	t.Setenv("SOE_TEST_JWT_KEY", "test-signing-key")
	auth := NewJWTAuthenticator("SOE_TEST_JWT_KEY")

	tok := signToken(t, []byte("test-signing-key"), "user-1", "", []string{"OPS"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/plans/p1/versions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	_, err := auth.Authenticate(req)
	assert.Error(t, err)
}
