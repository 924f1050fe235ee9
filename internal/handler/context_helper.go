package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// claimsFromContext returns the verified token claims placed on the
// context by the JWT middleware, or nil on unauthenticated routes.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requestMeta captures caller IP and user agent for audit trails.
func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// scopeToStudent pins studentID to the caller's own student profile for
// student-role tokens. When the profile could not be resolved it writes
// a 403 and returns false; an unresolved scope must never widen a query.
func scopeToStudent(c *gin.Context, studentID *string) bool {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleStudent {
		return true
	}
	own := c.GetString(middleware.ContextStudentKey)
	if own == "" {
		response.Error(c, appErrors.ErrForbidden)
		return false
	}
	*studentID = own
	return true
}
