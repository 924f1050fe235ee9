package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flightline-dev/flightline-api/internal/repository"
)

func auditRouter(t *testing.T, mock func(sqlmock.Sqlmock)) (*gin.Engine, *observer.ObservedLogs) {
	db, sqlMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock(sqlMock)

	repo := repository.NewUserRepository(sqlx.NewDb(db, "sqlmock"))
	core, logs := observer.New(zap.WarnLevel)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/rates", Audit(repo, zap.New(core), "RATE_CHANGE", "rates"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, logs
}

func TestAuditWritesEntryAfterSuccess(t *testing.T) {
	r, logs := auditRouter(t, func(m sqlmock.Sqlmock) {
		m.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rates", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, logs.Len())
}

func TestAuditLogsFailedWriteWithoutFailingRequest(t *testing.T) {
	r, logs := auditRouter(t, func(m sqlmock.Sqlmock) {
		m.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rates", nil))

	assert.Equal(t, http.StatusOK, w.Code, "audit trouble never fails the request")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, "failed to record audit log", entry.Message)
}
