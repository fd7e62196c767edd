package models

import "time"

// Break is a gap of Duration hours starting at Start that must stay unbooked.
type Break struct {
	Start    Hour `json:"start"`
	Duration int  `json:"duration"`
}

// BookingSlot assigns Room for [From, To).
type BookingSlot struct {
	Room RoomID `json:"room"`
	From Hour   `json:"from"`
	To   Hour   `json:"to"`
}

// Hours returns the slot length.
func (s BookingSlot) Hours() int {
	return int(s.To - s.From)
}

// Segment is a contiguous part of a request left after carving out breaks.
type Segment struct {
	Start    Hour `json:"start"`
	Duration int  `json:"duration"`
}

// RoomRequest is a fully resolved booking intent.
type RoomRequest struct {
	Title        string            `json:"title"`
	Date         time.Time         `json:"date"`
	Start        Hour              `json:"start"`
	Duration     int               `json:"duration"`
	Breaks       []Break           `json:"breaks,omitempty"`
	Restrictions []RoomRestriction `json:"restrictions,omitempty"`
	Category     RoomCategory      `json:"category"`
	// StrictStart disables shifting the start forward when no room is free.
	StrictStart bool `json:"strict_start"`
}

// BookingStatus is the lifecycle state of a single submitted slot.
type BookingStatus string

const (
	BookingStatusSubmitted BookingStatus = "submitted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusFailed    BookingStatus = "failed"
)

// BookingRecord is the persisted outcome of one slot submission.
type BookingRecord struct {
	ID           string        `db:"id" json:"id"`
	ProposalID   string        `db:"proposal_id" json:"proposal_id"`
	RoomID       int           `db:"room_id" json:"room_id"`
	RoomName     string        `db:"room_name" json:"room_name"`
	Category     int           `db:"category" json:"category"`
	BookingDate  time.Time     `db:"booking_date" json:"booking_date"`
	FromHour     int           `db:"from_hour" json:"from_hour"`
	ToHour       int           `db:"to_hour" json:"to_hour"`
	Title        string        `db:"title" json:"title"`
	Status       BookingStatus `db:"status" json:"status"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// ProposalStatus captures the confirmation lifecycle of a proposal.
type ProposalStatus string

const (
	ProposalStatusPending    ProposalStatus = "PENDING"
	ProposalStatusQueued     ProposalStatus = "QUEUED"
	ProposalStatusProcessing ProposalStatus = "PROCESSING"
	ProposalStatusBooked     ProposalStatus = "BOOKED"
	ProposalStatusFailed     ProposalStatus = "FAILED"
)

// Proposal is a planned set of slots awaiting operator confirmation.
type Proposal struct {
	ID             string         `json:"id"`
	Request        RoomRequest    `json:"request"`
	Slots          []BookingSlot  `json:"slots"`
	RequestedHours int            `json:"requested_hours"`
	CoveredHours   int            `json:"covered_hours"`
	SubmittedSlots int            `json:"submitted_slots"`
	Status         ProposalStatus `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Settled reports whether the proposal left the submission pipeline.
func (p *Proposal) Settled() bool {
	return p.Status == ProposalStatusBooked || p.Status == ProposalStatusFailed
}

// Complete reports whether every requested hour is covered.
func (p *Proposal) Complete() bool {
	return p != nil && p.CoveredHours >= p.RequestedHours
}
