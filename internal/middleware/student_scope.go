package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
)

// ContextStudentKey is the gin context key storing the resolved student
// profile id for student-role callers.
const ContextStudentKey = "currentStudent"

// StudentScope resolves the student profile behind a student-role token so
// downstream handlers can restrict reads to the caller's own records. Other
// roles pass through untouched.
func StudentScope(roster *service.RosterService) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims.Role != models.RoleStudent {
			c.Next()
			return
		}
		student, err := roster.GetStudentByUser(c.Request.Context(), claims.UserID)
		if err == nil {
			c.Set(ContextStudentKey, student.ID)
		}
		c.Next()
	}
}
