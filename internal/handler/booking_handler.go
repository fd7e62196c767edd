package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/models"
	"github.com/noah-isme/room-booker/internal/service"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/response"
)

type bookingService interface {
	PlanFromDTO(ctx context.Context, req dto.PlanBookingRequest, actor string) (*models.Proposal, error)
	Get(ctx context.Context, id string) (*models.Proposal, []models.BookingRecord, error)
	Confirm(ctx context.Context, id, actor string) (*models.Proposal, error)
	Discard(ctx context.Context, id string) error
}

type proposalExporter interface {
	Render(proposal *models.Proposal, records []models.BookingRecord, format service.ExportFormat) (*service.ExportFile, error)
}

// BookingHandler exposes the plan, confirm and export flow.
type BookingHandler struct {
	service  bookingService
	exporter proposalExporter
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc bookingService, exporter proposalExporter) *BookingHandler {
	return &BookingHandler{service: svc, exporter: exporter}
}

// Plan godoc
// @Summary Plan a booking
// @Description Computes room assignments for the request and stores them as a pending proposal
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.PlanBookingRequest true "Booking request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Plan(c *gin.Context) {
	var req dto.PlanBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	proposal, err := h.service.PlanFromDTO(c.Request.Context(), req, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewProposalResponse(proposal, nil))
}

// Get godoc
// @Summary Get a proposal
// @Tags Bookings
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	proposal, records, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewProposalResponse(proposal, records))
}

// Confirm godoc
// @Summary Confirm a proposal
// @Description Queues the proposal's slots for submission to the portal
// @Tags Bookings
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	proposal, err := h.service.Confirm(c.Request.Context(), c.Param("id"), operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.ConfirmResponse{ID: proposal.ID, Status: proposal.Status})
}

// Discard godoc
// @Summary Discard a proposal
// @Tags Bookings
// @Param id path string true "Proposal ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a proposal
// @Description Downloads the proposal's slots with their submission outcomes
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Proposal ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id}/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportFormatCSV))))

	proposal, records, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Render(proposal, records, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
