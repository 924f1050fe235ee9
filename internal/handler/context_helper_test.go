package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
)

func studentContext(t *testing.T, studentID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/test", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
	if studentID != "" {
		c.Set(middleware.ContextStudentKey, studentID)
	}
	return c, w
}

func TestScopeToStudentPinsOwnProfile(t *testing.T) {
	c, _ := studentContext(t, "student-1")

	id := "someone-else"
	assert.True(t, scopeToStudent(c, &id))
	assert.Equal(t, "student-1", id, "student callers only ever query their own records")
}

func TestScopeToStudentFailsClosedWithoutProfile(t *testing.T) {
	// Profile resolution failed upstream, the key was never set. The
	// query must not run unscoped.
	c, w := studentContext(t, "")

	id := ""
	assert.False(t, scopeToStudent(c, &id))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, id)
}

func TestScopeToStudentPassesStaffThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/test", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-2", Role: models.RoleInstructor})

	id := "student-7"
	assert.True(t, scopeToStudent(c, &id))
	assert.Equal(t, "student-7", id, "staff filters stay as requested")
}
