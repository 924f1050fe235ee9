package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// AircraftHandler exposes fleet endpoints.
type AircraftHandler struct {
	fleet *service.AircraftService
}

// NewAircraftHandler creates a new aircraft handler.
func NewAircraftHandler(fleet *service.AircraftService) *AircraftHandler {
	return &AircraftHandler{fleet: fleet}
}

// Create godoc
// @Summary Register aircraft
// @Description Register a new aircraft in the fleet
// @Tags Aircraft
// @Accept json
// @Produce json
// @Param payload body service.AircraftRequest true "Aircraft payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /aircraft [post]
func (h *AircraftHandler) Create(c *gin.Context) {
	var req service.AircraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	aircraft, err := h.fleet.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, aircraft)
}

// Get godoc
// @Summary Get aircraft
// @Tags Aircraft
// @Produce json
// @Param id path string true "Aircraft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /aircraft/{id} [get]
func (h *AircraftHandler) Get(c *gin.Context) {
	aircraft, err := h.fleet.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aircraft, nil)
}

// List godoc
// @Summary List aircraft
// @Description List the fleet with pagination and filtering
// @Tags Aircraft
// @Produce json
// @Param status query string false "Aircraft status"
// @Param category query string false "Category"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /aircraft [get]
func (h *AircraftHandler) List(c *gin.Context) {
	var filter models.AircraftFilter
	if status := c.Query("status"); status != "" {
		st := models.AircraftStatus(status)
		filter.Status = &st
	}
	filter.Category = c.Query("category")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	aircraft, pagination, err := h.fleet.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aircraft, pagination)
}

// Update godoc
// @Summary Update aircraft
// @Tags Aircraft
// @Accept json
// @Produce json
// @Param id path string true "Aircraft ID"
// @Param payload body service.AircraftRequest true "Aircraft payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /aircraft/{id} [put]
func (h *AircraftHandler) Update(c *gin.Context) {
	var req service.AircraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	aircraft, err := h.fleet.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aircraft, nil)
}
