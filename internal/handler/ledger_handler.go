package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// LedgerHandler exposes billing account and transaction endpoints.
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

func (h *LedgerHandler) scopedStudentID(c *gin.Context) (string, error) {
	studentID := c.Param("studentId")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		own := c.GetString(middleware.ContextStudentKey)
		if own == "" || (studentID != "" && studentID != own) {
			return "", appErrors.ErrForbidden
		}
		return own, nil
	}
	if studentID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	return studentID, nil
}

// GetAccount godoc
// @Summary Get billing account
// @Description Get the billing account and balance for a student
// @Tags Ledger
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /billing/accounts/{studentId} [get]
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	studentID, err := h.scopedStudentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	account, err := h.ledger.GetAccount(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// ListTransactions godoc
// @Summary List ledger transactions
// @Description List a student's ledger entries newest first
// @Tags Ledger
// @Produce json
// @Param studentId path string true "Student ID"
// @Param type query string false "Transaction type"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing/accounts/{studentId}/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	studentID, err := h.scopedStudentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.TransactionFilter{StudentID: studentID}
	if txType := c.Query("type"); txType != "" {
		t := models.TransactionType(txType)
		filter.Type = &t
	}
	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &parsed
		}
	}
	if to := c.Query("to"); to != "" {
		if parsed, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &parsed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	txns, pagination, err := h.ledger.Transactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, pagination)
}

// Adjust godoc
// @Summary Record a manual adjustment
// @Description Apply an administrative credit or debit to a student's account
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body service.AdjustmentRequest true "Adjustment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /billing/adjustments [post]
func (h *LedgerHandler) Adjust(c *gin.Context) {
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	txn, err := h.ledger.Adjust(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, txn)
}

// SetAccountStatus godoc
// @Summary Change account status
// @Description Suspend, reactivate or close a billing account
// @Tags Ledger
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body object true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /billing/accounts/{studentId}/status [put]
func (h *LedgerHandler) SetAccountStatus(c *gin.Context) {
	var req struct {
		Status models.AccountStatus `json:"status" binding:"required,oneof=ACTIVE SUSPENDED CLOSED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	account, err := h.ledger.SetStatus(c.Request.Context(), c.Param("studentId"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}
