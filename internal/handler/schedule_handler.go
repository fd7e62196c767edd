package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/middleware"
	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/response"
)

type scheduleService interface {
	ScheduleFromQuery(ctx context.Context, query dto.ScheduleQuery) (*models.Schedule, bool, error)
}

// ScheduleHandler exposes room schedules and the room catalog.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

type roomResponse struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Category     int    `json:"category"`
	CategoryName string `json:"categoryName"`
}

type scheduleResponse struct {
	Date     string                    `json:"date"`
	Category int                       `json:"category"`
	Title    string                    `json:"title"`
	Rooms    []models.RoomAvailability `json:"rooms"`
	Unknown  []string                  `json:"unknownRooms,omitempty"`
}

// List godoc
// @Summary Room schedule
// @Description Busy hours per room for one day of a category
// @Tags Schedules
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Param category query int false "Room category, defaults to bookable group rooms"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var query dto.ScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	schedule, hit, err := h.service.ScheduleFromQuery(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)

	rooms, unknown := schedule.Availability()
	response.JSON(c, http.StatusOK, scheduleResponse{
		Date:     schedule.Date.Format("2006-01-02"),
		Category: int(schedule.Category),
		Title:    schedule.CategoryTitle,
		Rooms:    rooms,
		Unknown:  unknown,
	}, middleware.ExtractMeta(c))
}

// Rooms godoc
// @Summary Room catalog
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *ScheduleHandler) Rooms(c *gin.Context) {
	catalog := models.Rooms()
	rooms := make([]roomResponse, 0, len(catalog))
	for _, info := range catalog {
		rooms = append(rooms, roomResponse{
			ID:           int(info.ID),
			Name:         info.Name,
			Category:     int(info.Category),
			CategoryName: info.Category.String(),
		})
	}
	response.JSON(c, http.StatusOK, rooms, map[string]interface{}{"total": len(rooms)})
}
