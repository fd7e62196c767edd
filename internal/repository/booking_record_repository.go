package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-booker/internal/models"
)

// BookingRecordRepository persists the outcome of every slot submission.
type BookingRecordRepository struct {
	db *sqlx.DB
}

// NewBookingRecordRepository constructs the repository.
func NewBookingRecordRepository(db *sqlx.DB) *BookingRecordRepository {
	return &BookingRecordRepository{db: db}
}

// Create inserts one booking record, filling id and created_at when empty.
func (r *BookingRecordRepository) Create(ctx context.Context, record *models.BookingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO booking_records (id, proposal_id, room_id, room_name, category, booking_date, from_hour, to_hour, title, status, error_message, created_by, created_at)
VALUES (:id, :proposal_id, :room_id, :room_name, :category, :booking_date, :from_hour, :to_hour, :title, :status, :error_message, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create booking record: %w", err)
	}
	return nil
}

// ListByProposal returns the records of a proposal in submission order.
func (r *BookingRecordRepository) ListByProposal(ctx context.Context, proposalID string) ([]models.BookingRecord, error) {
	const query = `SELECT id, proposal_id, room_id, room_name, category, booking_date, from_hour, to_hour, title, status, error_message, created_by, created_at
FROM booking_records WHERE proposal_id = $1 ORDER BY from_hour ASC, created_at ASC`
	var records []models.BookingRecord
	if err := r.db.SelectContext(ctx, &records, query, proposalID); err != nil {
		return nil, fmt.Errorf("list booking records: %w", err)
	}
	return records, nil
}
