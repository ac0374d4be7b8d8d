package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lgu-assessor/faas-api/internal/models"
)

func runRoleGate(t *testing.T, gate gin.HandlerFunc, claims *models.JWTClaims) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/records/rec-1/cancel-decision", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	reached := false
	gate(c)
	if !c.IsAborted() {
		reached = true
	}
	return rec, reached
}

func TestRequireRolesAllowsListedRoles(t *testing.T) {
	gate := RequireRoles(models.RoleEncoder, models.RoleApprover)

	for _, role := range []models.UserRole{models.RoleEncoder, models.RoleApprover} {
		claims := &models.JWTClaims{UserID: "user-1", Role: role}
		_, reached := runRoleGate(t, gate, claims)
		assert.True(t, reached, "role %s should pass the gate", role)
	}
}

func TestRequireRolesAdminAlwaysPasses(t *testing.T) {
	gate := RequireRoles(models.RoleApprover)

	claims := &models.JWTClaims{UserID: "user-adm", Role: models.RoleAdmin}
	_, reached := runRoleGate(t, gate, claims)
	assert.True(t, reached)
}

func TestRequireRolesRejectsUnlistedRole(t *testing.T) {
	gate := RequireRoles(models.RoleApprover)

	claims := &models.JWTClaims{UserID: "user-enc", Role: models.RoleEncoder}
	rec, reached := runRoleGate(t, gate, claims)
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesRejectsMissingClaims(t *testing.T) {
	gate := RequireRoles(models.RoleEncoder)

	rec, reached := runRoleGate(t, gate, nil)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
