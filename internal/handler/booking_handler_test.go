package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/middleware"
	"github.com/noah-isme/room-booker/internal/models"
	"github.com/noah-isme/room-booker/internal/service"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
)

type bookingServiceMock struct {
	proposal  *models.Proposal
	records   []models.BookingRecord
	err       error
	planned   dto.PlanBookingRequest
	actor     string
	discarded string
}

func (m *bookingServiceMock) PlanFromDTO(_ context.Context, req dto.PlanBookingRequest, actor string) (*models.Proposal, error) {
	m.planned = req
	m.actor = actor
	return m.proposal, m.err
}

func (m *bookingServiceMock) Get(_ context.Context, id string) (*models.Proposal, []models.BookingRecord, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.proposal, m.records, nil
}

func (m *bookingServiceMock) Confirm(_ context.Context, id, actor string) (*models.Proposal, error) {
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	confirmed := *m.proposal
	confirmed.Status = models.ProposalStatusQueued
	return &confirmed, nil
}

func (m *bookingServiceMock) Discard(_ context.Context, id string) error {
	m.discarded = id
	return m.err
}

func sampleProposal() *models.Proposal {
	return &models.Proposal{
		ID: "p-1",
		Request: models.RoomRequest{
			Title:    "Retro",
			Date:     time.Date(2024, time.April, 17, 0, 0, 0, 0, time.UTC),
			Start:    9,
			Duration: 2,
			Category: models.CategoryBookableGroupRooms,
		},
		Slots:          []models.BookingSlot{{Room: models.RoomG10_2, From: 9, To: 11}},
		RequestedHours: 2,
		CoveredHours:   2,
		Status:         models.ProposalStatusPending,
	}
}

func bookingRouter(svc bookingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBookingHandler(svc, service.NewExportService(nil, nil, nil))
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{OperatorID: "desk"})
		c.Next()
	})
	router.POST("/bookings", h.Plan)
	router.GET("/bookings/:id", h.Get)
	router.POST("/bookings/:id/confirm", h.Confirm)
	router.DELETE("/bookings/:id", h.Discard)
	router.GET("/bookings/:id/export", h.Export)
	return router
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestBookingHandlerPlan(t *testing.T) {
	mock := &bookingServiceMock{proposal: sampleProposal()}
	router := bookingRouter(mock)

	body, _ := json.Marshal(dto.PlanBookingRequest{Date: "2024-04-17", FromTime: 9, Duration: 2, Title: "Retro"})
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "desk", mock.actor)
	assert.Equal(t, 9, mock.planned.FromTime)

	var resp dto.ProposalResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &resp))
	assert.Equal(t, "p-1", resp.ID)
	assert.True(t, resp.Complete)
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, "G10:2", resp.Slots[0].RoomName)
	assert.Equal(t, "09:00", resp.Slots[0].From)
}

func TestBookingHandlerPlanInvalidBody(t *testing.T) {
	router := bookingRouter(&bookingServiceMock{})
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader([]byte(`{"fromTime": "nine"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestBookingHandlerConfirmAndErrors(t *testing.T) {
	mock := &bookingServiceMock{proposal: sampleProposal()}
	router := bookingRouter(mock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bookings/p-1/confirm", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	var confirmed dto.ConfirmResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &confirmed))
	assert.Equal(t, models.ProposalStatusQueued, confirmed.Status)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "proposal is queued")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bookings/p-1/confirm", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "proposal is queued", decodeEnvelope(t, w).Error.Message)

	mock.err = appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandlerDiscard(t *testing.T) {
	mock := &bookingServiceMock{proposal: sampleProposal()}
	router := bookingRouter(mock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/bookings/p-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "p-1", mock.discarded)
}

func TestBookingHandlerExport(t *testing.T) {
	mock := &bookingServiceMock{proposal: sampleProposal()}
	router := bookingRouter(mock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/p-1/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="booking_20240417_Retro.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "G10:2")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/p-1/export?format=PDF", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/p-1/export?format=xlsx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
