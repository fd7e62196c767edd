package dto

import (
	"time"

	"github.com/noah-isme/room-booker/internal/models"
)

// BreakRequest is a pause inside a requested window.
type BreakRequest struct {
	FromTime int `json:"fromTime" validate:"min=4,max=23"`
	Duration int `json:"duration" validate:"min=1,max=19"`
}

// PlanBookingRequest captures POST /bookings/plan payload.
type PlanBookingRequest struct {
	Title        string         `json:"title" validate:"omitempty,max=120"`
	Date         string         `json:"date" validate:"required,datetime=2006-01-02"`
	FromTime     int            `json:"fromTime" validate:"min=4,max=23"`
	Duration     int            `json:"duration" validate:"required,min=1,max=19"`
	Breaks       []BreakRequest `json:"breaks" validate:"omitempty,dive"`
	RoomFilters  []int          `json:"roomFilters" validate:"omitempty,dive,min=0,max=3"`
	RoomCategory int            `json:"roomCategory" validate:"omitempty,min=1"`
	StrictStart  bool           `json:"strictStart"`
}

// ScheduleQuery captures GET /schedules query parameters.
type ScheduleQuery struct {
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
	Category int    `form:"category" validate:"omitempty,min=1"`
}

// SlotResponse is one planned room assignment.
type SlotResponse struct {
	RoomID   int    `json:"roomId"`
	RoomName string `json:"roomName"`
	From     string `json:"from"`
	To       string `json:"to"`
	Hours    int    `json:"hours"`
}

// ProposalResponse exposes a planned booking and its submission progress.
type ProposalResponse struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Date           string                 `json:"date"`
	Category       int                    `json:"category"`
	CategoryName   string                 `json:"categoryName"`
	Slots          []SlotResponse         `json:"slots"`
	RequestedHours int                    `json:"requestedHours"`
	CoveredHours   int                    `json:"coveredHours"`
	Complete       bool                   `json:"complete"`
	Status         models.ProposalStatus  `json:"status"`
	Error          *string                `json:"error,omitempty"`
	ExpiresAt      time.Time              `json:"expiresAt"`
	Records        []models.BookingRecord `json:"records,omitempty"`
}

// NewProposalResponse maps a proposal onto its API shape.
func NewProposalResponse(p *models.Proposal, records []models.BookingRecord) ProposalResponse {
	slots := make([]SlotResponse, 0, len(p.Slots))
	for _, slot := range p.Slots {
		slots = append(slots, SlotResponse{
			RoomID:   int(slot.Room),
			RoomName: slot.Room.Name(),
			From:     slot.From.String(),
			To:       slot.To.String(),
			Hours:    slot.Hours(),
		})
	}
	resp := ProposalResponse{
		ID:             p.ID,
		Title:          p.Request.Title,
		Date:           p.Request.Date.Format("2006-01-02"),
		Category:       int(p.Request.Category),
		CategoryName:   p.Request.Category.String(),
		Slots:          slots,
		RequestedHours: p.RequestedHours,
		CoveredHours:   p.CoveredHours,
		Complete:       p.Complete(),
		Status:         p.Status,
		ExpiresAt:      p.ExpiresAt,
		Records:        records,
	}
	if p.ErrorMessage != "" {
		msg := p.ErrorMessage
		resp.Error = &msg
	}
	return resp
}

// ConfirmResponse is returned after a proposal is queued for submission.
type ConfirmResponse struct {
	ID     string                `json:"id"`
	Status models.ProposalStatus `json:"status"`
}
