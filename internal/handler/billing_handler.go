package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// BillingHandler exposes rate, session cost and invoice endpoints.
type BillingHandler struct {
	rates    *service.RateService
	billing  *service.BillingService
	sessions *service.SessionService
	renderer *service.ExportService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(rates *service.RateService, billing *service.BillingService, sessions *service.SessionService, renderer *service.ExportService) *BillingHandler {
	return &BillingHandler{rates: rates, billing: billing, sessions: sessions, renderer: renderer}
}

// SetRate godoc
// @Summary Set instruction rates
// @Description Set the flight and ground rates for a student/instructor pair
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.SetRateRequest true "Rate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /billing/rates [post]
func (h *BillingHandler) SetRate(c *gin.Context) {
	var req service.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rate, err := h.rates.Set(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rate)
}

// ResolveRate godoc
// @Summary Resolve effective rates
// @Description Resolve the rates that would apply to a student/instructor pair
// @Tags Billing
// @Produce json
// @Param student_id query string true "Student ID"
// @Param instructor_id query string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /billing/rates/resolve [get]
func (h *BillingHandler) ResolveRate(c *gin.Context) {
	studentID := c.Query("student_id")
	instructorID := c.Query("instructor_id")
	if studentID == "" || instructorID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id and instructor_id are required"))
		return
	}
	resolved, err := h.rates.Resolve(c.Request.Context(), studentID, instructorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}

// RateHistory godoc
// @Summary Rate history
// @Description List all rates ever set for a student/instructor pair
// @Tags Billing
// @Produce json
// @Param student_id query string true "Student ID"
// @Param instructor_id query string false "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /billing/rates [get]
func (h *BillingHandler) RateHistory(c *gin.Context) {
	studentID := c.Query("student_id")
	instructorID := c.Query("instructor_id")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}

	var (
		rates []models.Rate
		err   error
	)
	if instructorID != "" {
		rates, err = h.rates.History(c.Request.Context(), studentID, instructorID)
	} else {
		rates, err = h.rates.ListForStudent(c.Request.Context(), studentID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// ListSessionCosts godoc
// @Summary List session costs
// @Description List computed session costs with optional filters
// @Tags Billing
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Cost status"
// @Success 200 {object} response.Envelope
// @Router /billing/costs [get]
func (h *BillingHandler) ListSessionCosts(c *gin.Context) {
	var filter models.SessionCostFilter
	filter.StudentID = c.Query("student_id")
	if status := c.Query("status"); status != "" {
		cs := models.CostStatus(status)
		filter.Status = &cs
	}
	costs, err := h.billing.ListSessionCosts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, costs, nil)
}

// RecomputeSessionCost godoc
// @Summary Recompute a session cost
// @Description Recompute the pending cost of a completed session using current rates
// @Tags Billing
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/costs/{id}/recompute [post]
func (h *BillingHandler) RecomputeSessionCost(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	cost, err := h.billing.ComputeSessionCost(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cost, nil)
}

// AssembleInvoice godoc
// @Summary Assemble an invoice
// @Description Batch a student's pending session costs into a draft invoice
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.AssembleInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/invoices [post]
func (h *BillingHandler) AssembleInvoice(c *gin.Context) {
	var req service.AssembleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.billing.AssembleInvoice(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// GetInvoice godoc
// @Summary Get invoice
// @Description Get an invoice with its line items
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing/invoices/{id} [get]
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.billing.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	// Students can only read their own invoices.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		if invoice.StudentID != c.GetString(middleware.ContextStudentKey) {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// InvoicePDF godoc
// @Summary Download invoice PDF
// @Description Render the invoice as a PDF and return it inline
// @Tags Billing
// @Produce application/pdf
// @Param id path string true "Invoice ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /billing/invoices/{id}/pdf [get]
func (h *BillingHandler) InvoicePDF(c *gin.Context) {
	invoice, err := h.billing.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		if invoice.StudentID != c.GetString(middleware.ContextStudentKey) {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	payload, filename, err := h.renderer.RenderInvoicePDF(c.Request.Context(), invoice.ID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ListInvoices godoc
// @Summary List invoices
// @Description List invoices with pagination and filtering
// @Tags Billing
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Invoice status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing/invoices [get]
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.StudentID = c.Query("student_id")
	if status := c.Query("status"); status != "" {
		is := models.InvoiceStatus(status)
		filter.Status = &is
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if !scopeToStudent(c, &filter.StudentID) {
		return
	}

	invoices, pagination, err := h.billing.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// SendInvoice godoc
// @Summary Send invoice
// @Description Move a draft invoice to SENT
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/invoices/{id}/send [post]
func (h *BillingHandler) SendInvoice(c *gin.Context) {
	invoice, err := h.billing.SendInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// CancelInvoice godoc
// @Summary Cancel invoice
// @Description Cancel an unpaid invoice
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/invoices/{id}/cancel [post]
func (h *BillingHandler) CancelInvoice(c *gin.Context) {
	invoice, err := h.billing.CancelInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// SweepOverdue godoc
// @Summary Sweep overdue invoices
// @Description Flip sent invoices past their due date to OVERDUE
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/invoices/sweep-overdue [post]
func (h *BillingHandler) SweepOverdue(c *gin.Context) {
	flipped, err := h.billing.SweepOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked_overdue": flipped}, nil)
}
